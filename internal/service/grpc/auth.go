package grpcsvc

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/fulfillment/internal/auth"
	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

const (
	authorizationHeader = "authorization"
	healthServicePrefix = "/grpc.health.v1.Health/"
)

// AuthUnaryInterceptor проверяет bearer-токен и кладёт личность в контекст.
// Health-проверки проходят без токена.
func AuthUnaryInterceptor(verifier *auth.Verifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if verifier == nil || strings.HasPrefix(info.FullMethod, healthServicePrefix) {
			return handler(ctx, req)
		}

		md, _ := metadata.FromIncomingContext(ctx)
		values := md.Get(authorizationHeader)
		if len(values) == 0 {
			return nil, status.Error(codes.Unauthenticated, "authorization metadata is required")
		}
		token, ok := auth.BearerToken(values[0])
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "authorization must be a bearer token")
		}

		identity, err := verifier.Verify(token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid token")
		}
		return handler(auth.WithIdentity(ctx, identity), req)
	}
}

// resolveUser возвращает пользователя, от имени которого выполняется вызов.
// Без аутентификации доверяет запросу; обычный пользователь действует только от своего имени.
func resolveUser(ctx context.Context, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	identity, ok := auth.FromContext(ctx)
	if !ok {
		return requested, nil
	}
	if requested == "" {
		return identity.UserID, nil
	}
	if !identity.CanAccess(requested) {
		return "", status.Error(codes.PermissionDenied, "cannot act on behalf of another user")
	}
	return requested, nil
}

func requireAdmin(ctx context.Context) error {
	identity, ok := auth.FromContext(ctx)
	if !ok || identity.IsAdmin() {
		return nil
	}
	return status.Error(codes.PermissionDenied, "admin role is required")
}

func checkOwner(ctx context.Context, ownerID string) error {
	identity, ok := auth.FromContext(ctx)
	if !ok || identity.CanAccess(ownerID) {
		return nil
	}
	// чужой заказ неотличим от отсутствующего
	return toStatusError(domain.ErrOrderNotFound)
}

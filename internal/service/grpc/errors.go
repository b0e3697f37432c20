package grpcsvc

import (
	"errors"
	"strconv"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/fulfillment/internal/auth"
	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
	"github.com/vladislavdragonenkov/fulfillment/internal/service/idempotency"
)

// ErrorDomain: значение ErrorInfo.Domain во всех ошибках сервиса.
const ErrorDomain = "fulfillment.oms"

// grpcCodeFor сопоставляет стабильный код ошибки коду gRPC.
func grpcCodeFor(code domain.ErrorCode) codes.Code {
	switch code {
	case domain.CodeEmptyCart, domain.CodeInsufficientStock, domain.CodeInvalidTransition:
		return codes.FailedPrecondition
	case domain.CodeStockConflict:
		return codes.Aborted
	case domain.CodeNotFound:
		return codes.NotFound
	case domain.CodePersistenceFailure:
		return codes.Unavailable
	case domain.CodeInvalidArgument:
		return codes.InvalidArgument
	default:
		return codes.Internal
	}
}

// toStatusError переводит доменную ошибку в статус gRPC с ErrorInfo.
func toStatusError(err error) error {
	if err == nil {
		return nil
	}
	if st, ok := status.FromError(err); ok {
		return st.Err()
	}

	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, auth.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, idempotency.ErrInProgress):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return status.Error(codes.AlreadyExists, "idempotency key was used with a different request")
	}

	code := domain.CodeOf(err)
	message := err.Error()
	if code == domain.CodeInternal {
		message = "internal error"
	}

	metadata := map[string]string{
		"retryable": strconv.FormatBool(domain.IsRetryable(err)),
	}
	if productID, ok := domain.InsufficientStockProduct(err); ok {
		metadata["product_id"] = productID
	}
	return statusWithReason(grpcCodeFor(code), message, string(code), metadata)
}

func statusWithReason(code codes.Code, message, reason string, metadata map[string]string) error {
	st := status.New(code, message)
	detailed, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   reason,
		Domain:   ErrorDomain,
		Metadata: metadata,
	})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

// ErrorInfo возвращает ErrorInfo из статуса gRPC, если он есть.
func ErrorInfo(err error) (*errdetails.ErrorInfo, bool) {
	st, ok := status.FromError(err)
	if !ok {
		return nil, false
	}
	for _, detail := range st.Details() {
		if info, ok := detail.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			return info, true
		}
	}
	return nil, false
}

// ErrorReason возвращает стабильный код ошибки из статуса gRPC или пустую строку.
func ErrorReason(err error) string {
	if info, ok := ErrorInfo(err); ok {
		return info.GetReason()
	}
	return ""
}

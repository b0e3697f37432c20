// Package auth проверяет bearer JWT и кладёт личность пользователя в контекст запроса.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// Role: роль пользователя из токена.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid проверяет, что роль поддерживается.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

var (
	// ErrUnauthenticated: токен отсутствует или недействителен.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden: у пользователя нет прав на операцию.
	ErrForbidden = errors.New("forbidden")
	// ErrSecretRequired: секрет подписи не задан.
	ErrSecretRequired = errors.New("jwt secret is required")
)

// Identity: проверенный пользователь запроса.
type Identity struct {
	UserID string
	Role   Role
}

// IsAdmin сообщает, что пользователь администратор.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// CanAccess сообщает, может ли пользователь читать данные владельца ownerID.
func (i Identity) CanAccess(ownerID string) bool {
	return i.IsAdmin() || i.UserID == ownerID
}

// Claims описывает полезную нагрузку токена: sub = id пользователя, role = USER|ADMIN.
type Claims struct {
	Role Role `json:"role"`
	jwt.StandardClaims
}

// Valid дополняет стандартную проверку сроков обязательными полями.
func (c Claims) Valid() error {
	if err := c.StandardClaims.Valid(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Subject) == "" {
		return errors.New("token subject is empty")
	}
	if !c.Role.Valid() {
		return fmt.Errorf("unknown role %q", c.Role)
	}
	return nil
}

// Verifier выпускает и проверяет токены HS256.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier создаёт Verifier с общим секретом.
func NewVerifier(secret string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrSecretRequired
	}
	return &Verifier{
		secret: []byte(secret),
		now:    time.Now,
	}, nil
}

// Issue подписывает токен для identity со сроком жизни ttl.
func (v *Verifier) Issue(identity Identity, ttl time.Duration) (string, error) {
	if strings.TrimSpace(identity.UserID) == "" {
		return "", errors.New("user id is required")
	}
	if !identity.Role.Valid() {
		return "", fmt.Errorf("unknown role %q", identity.Role)
	}

	now := v.now()
	claims := Claims{
		Role: identity.Role,
		StandardClaims: jwt.StandardClaims{
			Subject:   identity.UserID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify проверяет подпись и сроки токена и возвращает личность пользователя.
func (v *Verifier) Verify(raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, ErrUnauthenticated
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !token.Valid {
		return Identity{}, ErrUnauthenticated
	}

	return Identity{UserID: claims.Subject, Role: claims.Role}, nil
}

// BearerToken извлекает токен из заголовка "Bearer <token>".
func BearerToken(header string) (string, bool) {
	const prefix = "bearer "
	header = strings.TrimSpace(header)
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

type identityKey struct{}

// WithIdentity кладёт личность в контекст.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// FromContext достаёт личность из контекста.
func FromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}

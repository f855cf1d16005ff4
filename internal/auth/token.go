// Package auth issues and verifies bearer tokens and carries the
// authenticated user through request contexts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"habitbot/internal/storage"
)

var (
	ErrNoCredentials = errors.New("authentication credentials were not provided")
	ErrInvalidToken  = errors.New("invalid or expired token")
	ErrNoSecret      = errors.New("auth: jwt secret is empty")
)

// DefaultTokenTTL applies when Issue is given a non-positive ttl.
const DefaultTokenTTL = 30 * 24 * time.Hour

// UserGetter loads the user a token names. *storage.Q satisfies it.
type UserGetter interface {
	GetUser(ctx context.Context, id int64) (storage.User, error)
}

// Issue signs an HS256 token whose subject is userID.
func Issue(secret []byte, userID int64, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", ErrNoSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	claims := &jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Authenticator turns a bearer token into a user.
type Authenticator struct {
	secret []byte
	users  func(ctx context.Context) UserGetter
}

// NewAuthenticator verifies tokens with secret and resolves users through
// store.
func NewAuthenticator(secret []byte, store *storage.Store) *Authenticator {
	return &Authenticator{
		secret: secret,
		users:  func(ctx context.Context) UserGetter { return store.Q(ctx) },
	}
}

// Verify parses token and loads its subject. Every failure maps to
// ErrInvalidToken; the cause is kept in the chain for logging.
func (a *Authenticator) Verify(ctx context.Context, token string) (storage.User, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return storage.User{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.ExpiresAt == nil {
		return storage.User{}, fmt.Errorf("%w: missing exp", ErrInvalidToken)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return storage.User{}, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, claims.Subject)
	}
	u, err := a.users(ctx).GetUser(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.User{}, fmt.Errorf("%w: user %d not found", ErrInvalidToken, id)
	}
	if err != nil {
		return storage.User{}, err
	}
	return u, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrNoCredentials
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(token), nil
}

type userKey struct{}

func WithUser(ctx context.Context, u storage.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom returns the authenticated user stored by WithUser.
func UserFrom(ctx context.Context) (storage.User, bool) {
	u, ok := ctx.Value(userKey{}).(storage.User)
	return u, ok
}

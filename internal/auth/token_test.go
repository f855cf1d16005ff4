package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"

	"habitbot/internal/storage"
)

type userMap map[int64]storage.User

func (m userMap) GetUser(_ context.Context, id int64) (storage.User, error) {
	u, ok := m[id]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return u, nil
}

func newTestAuth(secret string, users userMap) *Authenticator {
	return &Authenticator{secret: []byte(secret), users: func(context.Context) UserGetter { return users }}
}

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()
	a := newTestAuth("s3cret", userMap{7: {ID: 7, Email: "a@example.com", IsStaff: true}})

	tok, err := Issue([]byte("s3cret"), 7, time.Hour, time.Now())
	require.NoError(t, err)

	u, err := a.Verify(context.Background(), tok)
	require.NoError(t, err)
	require.Equal(t, int64(7), u.ID)
	require.True(t, u.IsStaff)
}

func TestVerifyRejects(t *testing.T) {
	t.Parallel()
	a := newTestAuth("s3cret", userMap{7: {ID: 7}})
	now := time.Now()

	expired, err := Issue([]byte("s3cret"), 7, time.Hour, now.Add(-2*time.Hour))
	require.NoError(t, err)
	wrongKey, err := Issue([]byte("other"), 7, time.Hour, now)
	require.NoError(t, err)
	unknown, err := Issue([]byte("s3cret"), 8, time.Hour, now)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &jwt.RegisteredClaims{
		Subject:   "7",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &jwt.RegisteredClaims{Subject: "7"}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"expired":   expired,
		"wrong key": wrongKey,
		"unknown":   unknown,
		"alg none":  none,
		"no exp":    noExp,
		"garbage":   "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := a.Verify(context.Background(), tok)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestIssueRequiresSecret(t *testing.T) {
	t.Parallel()
	_, err := Issue(nil, 1, 0, time.Now())
	require.ErrorIs(t, err, ErrNoSecret)
}

func TestBearerToken(t *testing.T) {
	t.Parallel()
	tok, err := BearerToken("Bearer abc.def")
	require.NoError(t, err)
	require.Equal(t, "abc.def", tok)

	tok, err = BearerToken("bearer   xyz ")
	require.NoError(t, err)
	require.Equal(t, "xyz", tok)

	_, err = BearerToken("")
	require.ErrorIs(t, err, ErrNoCredentials)
	_, err = BearerToken("Token abc")
	require.ErrorIs(t, err, ErrInvalidToken)
	_, err = BearerToken("Bearer")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestUserContext(t *testing.T) {
	t.Parallel()
	_, ok := UserFrom(context.Background())
	require.False(t, ok)
	ctx := WithUser(context.Background(), storage.User{ID: 3})
	u, ok := UserFrom(ctx)
	require.True(t, ok)
	require.Equal(t, int64(3), u.ID)
}

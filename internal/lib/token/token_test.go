package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/posts-api/internal/config"
)

func newTestManager(now time.Time) *Manager {
	m := NewManager(config.AuthConfig{
		JWTSecret: "0123456789abcdef0123",
		Issuer:    "posts-api",
		TokenTTL:  time.Hour,
	})
	m.now = func() time.Time { return now }
	return m
}

func TestManager_RoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Now().Truncate(time.Second)
	m := newTestManager(now)

	raw, expiresAt, err := m.Issue(7, "seven@example.com")
	require.NoError(t, err)
	require.Equal(t, now.Add(time.Hour), expiresAt)

	claims, err := m.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "seven@example.com", claims.Email)

	id, err := claims.UserID()
	require.NoError(t, err)
	require.EqualValues(t, 7, id)
}

func TestManager_Parse_Rejects(t *testing.T) {
	t.Parallel()

	now := time.Now().Truncate(time.Second)
	m := newTestManager(now)
	valid, _, err := m.Issue(7, "")
	require.NoError(t, err)

	expired := newTestManager(now.Add(-2 * time.Hour))
	expiredToken, _, err := expired.Issue(7, "")
	require.NoError(t, err)

	other := newTestManager(now)
	other.secret = []byte("another-secret-value")
	foreignToken, _, err := other.Issue(7, "")
	require.NoError(t, err)

	otherIssuer := newTestManager(now)
	otherIssuer.issuer = "someone-else"
	wrongIssuer, _, err := otherIssuer.Issue(7, "")
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Issuer:    "posts-api",
		Subject:   "7",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "posts-api",
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(m.secret)
	require.NoError(t, err)

	tests := map[string]string{
		"garbage":      "not-a-jwt",
		"expired":      expiredToken,
		"wrong secret": foreignToken,
		"wrong issuer": wrongIssuer,
		"alg none":     noneToken,
		"non-numeric":  badSubject,
		"tampered":     valid + "x",
		"empty":        "",
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := m.Parse(raw)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestManager_Issue_InvalidUser(t *testing.T) {
	t.Parallel()

	_, _, err := newTestManager(time.Now()).Issue(0, "")
	require.ErrorIs(t, err, ErrInvalidUser)
}

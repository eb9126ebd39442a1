package auth

import (
	"testing"
	"time"

	"securetalk/config"

	"github.com/stretchr/testify/require"
)

func testJWTConfig() *config.JWTConfig {
	return &config.JWTConfig{
		AccessSecret: "unit-test-secret",
		AccessExpiry: 15 * time.Minute,
		Issuer:       "securetalk",
	}
}

func TestAccessToken_RoundTrip(t *testing.T) {
	t.Parallel()
	cfg := testJWTConfig()

	token, err := GenerateAccessToken(cfg, 42, "alice@example.com", "USER,MODERATOR", "sess-1", time.Now())
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	require.Equal(t, uint(42), claims.UserID)
	require.Equal(t, "alice@example.com", claims.Email)
	require.Equal(t, "USER,MODERATOR", claims.Roles)
	require.Equal(t, "sess-1", claims.SessionID)
	require.Equal(t, "securetalk", claims.Issuer)
}

func TestAccessToken_Expired(t *testing.T) {
	t.Parallel()
	cfg := testJWTConfig()

	token, err := GenerateAccessToken(cfg, 1, "a@b.c", "USER", "", time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAccessToken_WrongSecret(t *testing.T) {
	t.Parallel()
	cfg := testJWTConfig()

	token, err := GenerateAccessToken(cfg, 1, "a@b.c", "USER", "", time.Now())
	require.NoError(t, err)

	other := testJWTConfig()
	other.AccessSecret = "different"
	_, err = ParseAccessToken(other, token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseAccessToken(cfg, "not.a.jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}

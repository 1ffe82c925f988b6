package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/tandem/internal/auth"
)

var secret = []byte("unit-test-secret")

func TestTokenRoundTrip(t *testing.T) {
	token, err := auth.GenerateToken(secret, "u1", "Ana", time.Hour)
	require.NoError(t, err)

	claims, err := auth.ValidateToken(secret, token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
	require.Equal(t, "Ana", claims.Name)
	require.Equal(t, "tandem", claims.Issuer)
	require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestWrongSecretRejected(t *testing.T) {
	token, err := auth.GenerateToken(secret, "u1", "Ana", time.Hour)
	require.NoError(t, err)

	_, err = auth.ValidateToken([]byte("other-secret"), token)
	require.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := auth.GenerateToken(secret, "u1", "Ana", -time.Minute)
	require.NoError(t, err)

	_, err = auth.ValidateToken(secret, token)
	require.Error(t, err)
}

func TestDecodeClaimsWithoutSecret(t *testing.T) {
	token, err := auth.GenerateToken(secret, "u1", "Ana", time.Hour)
	require.NoError(t, err)

	claims, err := auth.DecodeClaims(token)
	require.NoError(t, err)
	require.Equal(t, "u1", claims.UserID)
	require.Equal(t, "Ana", claims.Name)
}

func TestDecodeClaimsRejectsGarbage(t *testing.T) {
	_, err := auth.DecodeClaims("not-a-jwt")
	require.Error(t, err)
}

func TestServiceTokenSource(t *testing.T) {
	source := auth.ServiceTokenSource(secret, "tandem-server", time.Hour)

	token := source()
	require.NotEmpty(t, token)
	claims, err := auth.ValidateToken(secret, token)
	require.NoError(t, err)
	require.Equal(t, "tandem-server", claims.UserID)

	require.Equal(t, token, source(), "a fresh token is served from cache")
}

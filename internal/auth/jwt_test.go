package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_GenerateAndValidate(t *testing.T) {
	svc := NewJWTService(JWTConfig{
		SecretKey:     "test-secret-key",
		TokenDuration: time.Hour,
		Issuer:        "matchd",
	})

	token, err := svc.GenerateToken(42, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "matchd", claims.Issuer)
	assert.True(t, claims.ExpiresAt.Time.After(time.Now()))
}

func TestJWTService_RejectsGarbageToken(t *testing.T) {
	svc := NewJWTService(JWTConfig{SecretKey: "s", TokenDuration: time.Hour})
	_, err := svc.ValidateToken("not.a.token")
	require.Error(t, err)
}

func TestJWTService_RejectsTokenSignedWithDifferentSecret(t *testing.T) {
	a := NewJWTService(JWTConfig{SecretKey: "secret-a", TokenDuration: time.Hour})
	b := NewJWTService(JWTConfig{SecretKey: "secret-b", TokenDuration: time.Hour})

	token, err := a.GenerateToken(1, "bob")
	require.NoError(t, err)

	_, err = b.ValidateToken(token)
	require.Error(t, err)
}

func TestJWTService_RejectsExpiredToken(t *testing.T) {
	svc := NewJWTService(JWTConfig{SecretKey: "s", TokenDuration: -time.Minute})
	token, err := svc.GenerateToken(1, "carol")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
}

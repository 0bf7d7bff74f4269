package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManagerRoundTrip(t *testing.T) {
	manager := NewJWTManager("secret", 1, 7)

	tokenString, err := manager.GenerateToken("alice")
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	claims, err := manager.VerifyToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
}

func TestJWTManagerRefreshTokenRoundTrip(t *testing.T) {
	manager := NewJWTManager("secret", 1, 7)

	refreshToken, err := manager.GenerateRefreshToken("alice")
	require.NoError(t, err)

	claims, err := manager.VerifyToken(refreshToken)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
}

func TestJWTManagerRejectsWrongSecret(t *testing.T) {
	manager := NewJWTManager("secret", 1, 7)
	other := NewJWTManager("different-secret", 1, 7)

	tokenString, err := manager.GenerateToken("alice")
	require.NoError(t, err)

	_, err = other.VerifyToken(tokenString)
	assert.Error(t, err)
}

func TestJWTManagerRejectsGarbage(t *testing.T) {
	manager := NewJWTManager("secret", 1, 7)

	_, err := manager.VerifyToken("not-a-jwt")
	assert.Error(t, err)
}

func TestGenerateRandomString(t *testing.T) {
	a := GenerateRandomString(16)
	b := GenerateRandomString(16)

	assert.Len(t, a, 32, "16 字节应编码为 32 个十六进制字符")
	assert.NotEqual(t, a, b)
}

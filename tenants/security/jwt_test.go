package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_RoundTrip(t *testing.T) {
	issuer := NewIssuer("test-secret", time.Hour)

	token, expiresAt, err := issuer.GenerateToken("user-1", "tenant-a")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := issuer.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "tenant-a", claims.TenantID)

	tenant, err := issuer.TenantFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", tenant)
}

func TestIssuer_RejectsForeignSecret(t *testing.T) {
	token, _, err := NewIssuer("one", time.Hour).GenerateToken("u", "t")
	require.NoError(t, err)

	_, err = NewIssuer("two", time.Hour).ValidateToken(token)
	assert.Error(t, err)
}

func TestIssuer_RejectsExpired(t *testing.T) {
	issuer := NewIssuer("secret", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, _, err := issuer.GenerateToken("u", "t")
	require.NoError(t, err)

	_, err = NewIssuer("secret", time.Minute).ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestIssuer_RejectsMissingTenant(t *testing.T) {
	token, _, err := NewIssuer("secret", time.Hour).GenerateToken("u", "")
	require.NoError(t, err)

	_, err = NewIssuer("secret", time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, CheckPasswordHash("s3cret", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier("test-secret")
	require.True(t, v.Enabled())

	token, err := v.GenerateToken("u1", "tenant-1", time.Hour)
	require.NoError(t, err)

	claims, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", claims.CompanyID)
	assert.Equal(t, "u1", claims.UserID)
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier("test-secret")

	other := NewVerifier("other-secret")
	foreign, err := other.GenerateToken("u1", "tenant-1", time.Hour)
	require.NoError(t, err)
	_, err = v.ValidateToken(foreign)
	assert.Error(t, err, "wrong signature")

	expired, err := v.GenerateToken("u1", "tenant-1", -time.Minute)
	require.NoError(t, err)
	_, err = v.ValidateToken(expired)
	assert.Error(t, err, "expired")

	noTenant, err := v.GenerateToken("u1", "", time.Hour)
	require.NoError(t, err)
	_, err = v.ValidateToken(noTenant)
	assert.Error(t, err, "missing company_id")

	assert.False(t, NewVerifier("").Enabled())
}

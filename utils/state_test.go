package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAuthStateRoundTrip(t *testing.T) {
	token, err := CreateOAuthState("user123", "tenant456", 600)
	require.NoError(t, err)

	claims, err := ValidateOAuthState(token)
	require.NoError(t, err)
	assert.Equal(t, "user123", claims.UserID)
	assert.Equal(t, "tenant456", claims.TenantID)
	assert.Greater(t, claims.ExpiresAt, claims.IssuedAt)
}

func TestOAuthStateExpired(t *testing.T) {
	token, err := CreateOAuthState("user123", "tenant456", -1)
	require.NoError(t, err)

	_, err = ValidateOAuthState(token)
	assert.EqualError(t, err, "state expired")
}

func TestOAuthStateTamperedPayload(t *testing.T) {
	token, err := CreateOAuthState("user123", "tenant456", 600)
	require.NoError(t, err)

	parts := strings.SplitN(token, ".", 2)
	require.Len(t, parts, 2)

	// Flip the payload, keep the original signature
	forged := "x" + parts[0][1:] + "." + parts[1]
	_, err = ValidateOAuthState(forged)
	assert.EqualError(t, err, "invalid signature")
}

func TestOAuthStateMalformed(t *testing.T) {
	_, err := ValidateOAuthState("no-separator-here")
	assert.Error(t, err)

	_, err = ValidateOAuthState("")
	assert.Error(t, err)
}

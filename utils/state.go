package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// OAuthStateClaims holds the data carried through the provider consent
// redirect in the state parameter.
type OAuthStateClaims struct {
	UserID    string `json:"uid"`
	TenantID  string `json:"tid"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// CreateOAuthState creates an HMAC-signed state token for the OAuth consent
// round trip. The token expires after ttlSeconds.
func CreateOAuthState(userID, tenantID string, ttlSeconds int) (string, error) {
	now := time.Now().Unix()
	claims := OAuthStateClaims{
		UserID:    userID,
		TenantID:  tenantID,
		IssuedAt:  now,
		ExpiresAt: now + int64(ttlSeconds),
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	sig := signState(encoded)
	return encoded + "." + sig, nil
}

// ValidateOAuthState validates and decodes an HMAC-signed state token.
func ValidateOAuthState(stateToken string) (*OAuthStateClaims, error) {
	parts := strings.SplitN(stateToken, ".", 2)
	if len(parts) != 2 {
		return nil, errors.New("invalid state format")
	}

	encoded, sig := parts[0], parts[1]

	// Verify signature
	expected := signState(encoded)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return nil, errors.New("invalid signature")
	}

	// Decode payload
	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.New("invalid encoding")
	}

	var claims OAuthStateClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, errors.New("invalid payload")
	}

	// Check expiry
	if time.Now().Unix() > claims.ExpiresAt {
		return nil, errors.New("state expired")
	}

	return &claims, nil
}

// signState creates an HMAC-SHA256 signature for a state payload.
// Uses ENCRYPTION_KEY with a domain separator to avoid key reuse.
func signState(payload string) string {
	key := os.Getenv("ENCRYPTION_KEY")
	if key == "" {
		key = "dev-state-key"
	}

	mac := hmac.New(sha256.New, []byte("oauth-state:"+key))
	mac.Write([]byte(payload))
	return fmt.Sprintf("%x", mac.Sum(nil))
}

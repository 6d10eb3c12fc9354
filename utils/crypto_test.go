package utils

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The key derivation runs once per process, so the key must be in place
// before the first crypto call of the test binary.
func TestMain(m *testing.M) {
	os.Setenv("ENCRYPTION_KEY", "test-key-for-crypto-tests")
	os.Exit(m.Run())
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	require.True(t, IsEncryptionEnabled())

	encrypted, err := Encrypt("ya29.a0AfB_secret-access-token")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encrypted, "enc:"))
	assert.NotContains(t, encrypted, "secret-access-token")

	decrypted, err := Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "ya29.a0AfB_secret-access-token", decrypted)
}

func TestEncryptEmptyValue(t *testing.T) {
	encrypted, err := Encrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", encrypted)
}

func TestDecryptPassesThroughLegacyPlaintext(t *testing.T) {
	// Values without the prefix predate encryption and come back untouched
	decrypted, err := Decrypt("legacy-plaintext-token")
	require.NoError(t, err)
	assert.Equal(t, "legacy-plaintext-token", decrypted)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	encrypted, err := Encrypt("token-value")
	require.NoError(t, err)

	tampered := encrypted[:len(encrypted)-2] + "AA"
	out, err := Decrypt(tampered)
	assert.Error(t, err)
	assert.Equal(t, tampered, out)
}

func TestDecryptFieldNeverFails(t *testing.T) {
	encrypted, err := Encrypt("refresh-token")
	require.NoError(t, err)
	assert.Equal(t, "refresh-token", DecryptField(encrypted))

	// Garbage comes back as-is rather than erroring
	assert.Equal(t, "enc:not-base64!!", DecryptField("enc:not-base64!!"))
	assert.Equal(t, "", DecryptField(""))
}

func TestSecretFieldsCoversTokenColumns(t *testing.T) {
	fields := SecretFields[CollectionCalendarIntegrations]
	assert.Contains(t, fields, "access_token")
	assert.Contains(t, fields, "refresh_token")
}

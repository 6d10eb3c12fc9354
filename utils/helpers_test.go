package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpiryDateFormats(t *testing.T) {
	cases := []string{
		"2026-03-01 14:30:00.000Z",
		"2026-03-01T14:30:00Z",
		"2026-03-01T14:30:00.000Z",
		"2026-03-01 14:30:00",
	}
	for _, raw := range cases {
		parsed, err := ParseExpiryDate(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, time.March, parsed.Month(), raw)
		assert.Equal(t, 30, parsed.Minute(), raw)
	}

	_, err := ParseExpiryDate("not a date")
	assert.Error(t, err)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "jo@example.com", NormalizeEmail("  Jo@Example.COM "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

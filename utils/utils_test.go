package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRateLimitKey(t *testing.T) {
	key := GenerateRateLimitKey(42, "7", "/api/v1/campaigns/7/schedule")
	assert.Equal(t, "rl:42:7:/api/v1/campaigns/7/schedule", key)
}

func TestParseUint(t *testing.T) {
	assert.Equal(t, uint(123), ParseUint("123"))
	assert.Equal(t, uint(0), ParseUint("not-a-number"))
	assert.Equal(t, uint(0), ParseUint(""))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "2 days", FormatDuration(48*time.Hour))
	assert.Equal(t, "1.5 hours", FormatDuration(90*time.Minute))
	assert.Equal(t, "2.0 minutes", FormatDuration(2*time.Minute))
	assert.Equal(t, "30.0 seconds", FormatDuration(30*time.Second))
}

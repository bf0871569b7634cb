package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := LoadEnvironmentVariables()
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("PORT", "")
	t.Setenv("MATCH_RECENCY_WINDOW_MS", "")
	t.Setenv("MATCH_RETRY_DELAY_MS", "")
	t.Setenv("MATCH_MAX_RETRIES", "")
	t.Setenv("TYPING_IDLE_WINDOW_MS", "")

	cfg, err := LoadEnvironmentVariables()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.Matching.RecencyWindow)
	assert.Equal(t, 2*time.Second, cfg.Matching.RetryDelay)
	assert.Equal(t, 3, cfg.Matching.MaxRetries)
	assert.Equal(t, time.Second, cfg.Matching.TypingIdleWindow)
}

func TestLoadOverridesTunables(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MATCH_RECENCY_WINDOW_MS", "5000")
	t.Setenv("MATCH_RETRY_DELAY_MS", "250")
	t.Setenv("MATCH_MAX_RETRIES", "5")
	t.Setenv("TYPING_IDLE_WINDOW_MS", "1500")

	cfg, err := LoadEnvironmentVariables()
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Matching.RecencyWindow)
	assert.Equal(t, 250*time.Millisecond, cfg.Matching.RetryDelay)
	assert.Equal(t, 5, cfg.Matching.MaxRetries)
	assert.Equal(t, 1500*time.Millisecond, cfg.Matching.TypingIdleWindow)
}

func TestBadTunablesFallBack(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("MATCH_RETRY_DELAY_MS", "not-a-number")
	t.Setenv("MATCH_MAX_RETRIES", "-2")

	cfg, err := LoadEnvironmentVariables()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Second, cfg.Matching.RetryDelay)
	assert.Equal(t, 3, cfg.Matching.MaxRetries)
}

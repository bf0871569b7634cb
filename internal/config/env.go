package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultRecencyWindow    = 30 * time.Second
	DefaultRetryDelay       = 2 * time.Second
	DefaultMaxRetries       = 3
	DefaultTypingIdleWindow = 1 * time.Second
)

// loads configuration from environment variables
func LoadEnvironmentVariables() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		_ = err // not an error - production environments may not have a .env file
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return &Config{
		JWTSecret:   jwtSecret,
		RedisURL:    os.Getenv("REDIS_URL"),
		Environment: environment,
		Port:        port,
		Matching: Matching{
			RecencyWindow:    durationFromEnv("MATCH_RECENCY_WINDOW_MS", DefaultRecencyWindow),
			RetryDelay:       durationFromEnv("MATCH_RETRY_DELAY_MS", DefaultRetryDelay),
			MaxRetries:       intFromEnv("MATCH_MAX_RETRIES", DefaultMaxRetries),
			TypingIdleWindow: durationFromEnv("TYPING_IDLE_WINDOW_MS", DefaultTypingIdleWindow),
		},
	}, nil
}

// returns the default protocol tunables
func DefaultMatching() Matching {
	return Matching{
		RecencyWindow:    DefaultRecencyWindow,
		RetryDelay:       DefaultRetryDelay,
		MaxRetries:       DefaultMaxRetries,
		TypingIdleWindow: DefaultTypingIdleWindow,
	}
}

// reads a millisecond duration from the environment, falling back on parse failure
func durationFromEnv(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}

	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		return fallback
	}

	return time.Duration(ms) * time.Millisecond
}

// reads an integer from the environment, falling back on parse failure
func intFromEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}

	return n
}

package config

import "time"

type Config struct {
	// HS256 secret for anonymous identity tokens
	JWTSecret string

	// optional; the in-memory board is used when empty
	RedisURL string

	Environment string
	Port        string

	// matchmaking protocol tunables
	Matching Matching
}

// tunable matchmaking parameters, not protocol invariants
type Matching struct {
	// queue entries older than this are skipped as stale
	RecencyWindow time.Duration

	// fixed spacing between active re-match attempts
	RetryDelay time.Duration

	// number of active re-match attempts before falling back to passive waiting
	MaxRetries int

	// typing indicator clears after this much keyboard silence
	TypingIdleWindow time.Duration
}

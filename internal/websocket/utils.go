package websocket

import (
	"net/http"
	"os"
	"slices"
	"strings"

	"codeberg.org/anonchat/server/internal/logger"
)

func allowedWebSocketOrigins() []string {
	envOrigins := os.Getenv("ALLOWED_ORIGINS")
	if envOrigins == "" {
		return nil
	}

	origins := strings.Split(envOrigins, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return origins
}

// validates the Origin header; permissive outside production, allowlist-only
// in production
func CheckOrigin(r *http.Request) bool {
	if os.Getenv("ENVIRONMENT") != "production" {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		// native clients (the TUI) send no origin header
		return true
	}

	allowed := allowedWebSocketOrigins()
	if len(allowed) == 0 {
		logger.Warn("websocket origin rejected - ALLOWED_ORIGINS not configured", "origin", origin)
		return false
	}

	if slices.Contains(allowed, origin) {
		return true
	}

	logger.Warn("websocket origin rejected - not in allowed origins",
		"origin", origin,
		"allowed_origins", allowed,
	)

	return false
}

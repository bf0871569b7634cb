package main

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"codeberg.org/anonchat/server/internal/board"
	"codeberg.org/anonchat/server/internal/config"
	"codeberg.org/anonchat/server/internal/identity"
	"codeberg.org/anonchat/server/internal/logger"
	ws "codeberg.org/anonchat/server/internal/websocket"
)

// creates and configures a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	ids, err := identity.NewProvider(cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity provider: %w", err)
	}

	// the board is redis-backed when REDIS_URL is set, in-memory otherwise
	var b board.Board
	if cfg.RedisURL != "" {
		redisBoard, err := board.NewRedisBoard(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis board: %w", err)
		}
		b = redisBoard
	} else {
		b = board.NewMemoryBoard()
		logger.Info("using in-memory board")
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := &Server{
		config:   cfg,
		board:    b,
		identity: ids,
		hub:      ws.NewHub(),
		router:   gin.New(),
	}

	srv.router.Use(gin.Recovery())

	if err := RegisterRoutes(srv.router, srv); err != nil {
		b.Close() //nolint:errcheck,gosec // best-effort cleanup on init failure
		return nil, fmt.Errorf("failed to register routes: %w", err)
	}

	return srv, nil
}

package main

import (
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"codeberg.org/anonchat/server/api/rest/auth"
	"codeberg.org/anonchat/server/api/rest/health"
	"codeberg.org/anonchat/server/api/websocket"
)

// sets up all API routes and middleware
func RegisterRoutes(router *gin.Engine, server *Server) error {
	router.Use(CORSMiddleware())
	router.GET("/health", health.Handler(server.hub))

	v1 := router.Group("/api/v1")

	{
		v1.GET("/ping", health.PingHandler)

		if err := auth.RegisterRoutes(v1, server.identity); err != nil {
			return err
		}

		websocket.RegisterRoutes(v1, server.hub, server.board, server.identity, server.config.Matching)
	}

	return nil
}

// configures CORS from ALLOWED_ORIGINS; permissive outside production
func CORSMiddleware() gin.HandlerFunc {
	conf := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	allowed := os.Getenv("ALLOWED_ORIGINS")
	if allowed == "" {
		conf.AllowAllOrigins = true
		return cors.New(conf)
	}

	origins := strings.Split(allowed, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	conf.AllowOrigins = origins

	return cors.New(conf)
}

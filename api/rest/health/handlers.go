package health

import (
	"net/http"

	"github.com/gin-gonic/gin"

	ws "codeberg.org/anonchat/server/internal/websocket"
)

// Response represents the health check response
type Response struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Connections int    `json:"connections"`
}

// returns the server health status
func Handler(hub *ws.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, Response{
			Status:      "healthy",
			Service:     "anonchat",
			Connections: hub.Count(),
		})
	}
}

// responds with pong for testing
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

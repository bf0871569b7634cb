package websocket

import (
	"github.com/gin-gonic/gin"

	"codeberg.org/anonchat/server/internal/board"
	"codeberg.org/anonchat/server/internal/config"
	"codeberg.org/anonchat/server/internal/identity"
	ws "codeberg.org/anonchat/server/internal/websocket"
)

func RegisterRoutes(router *gin.RouterGroup, hub *ws.Hub, b board.Board, ids *identity.Provider, matching config.Matching) {
	router.GET("/ws", Handler(hub, b, ids, matching))
}

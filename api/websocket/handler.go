package websocket

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"codeberg.org/anonchat/server/internal/board"
	"codeberg.org/anonchat/server/internal/config"
	"codeberg.org/anonchat/server/internal/errors"
	"codeberg.org/anonchat/server/internal/identity"
	"codeberg.org/anonchat/server/internal/logger"
	ws "codeberg.org/anonchat/server/internal/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     ws.CheckOrigin,
}

// upgrades an authenticated connection and binds it to a fresh board client.
// The token names the caller's stable anonymous identity; matchmaking never
// starts without one.
func Handler(hub *ws.Hub, b board.Board, ids *identity.Provider, matching config.Matching) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			errors.Unauthorized(c, "identity token required")
			return
		}

		userID, err := ids.Verify(token)
		if err != nil {
			errors.Unauthorized(c, "invalid identity token")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error response
			logger.ErrorErr(err, "websocket upgrade failed", "user_id", userID)
			return
		}

		client := ws.NewClient(uuid.NewString(), userID, conn, hub, b.NewClient(), matching)

		if !hub.Register(client) {
			client.Teardown()
			conn.Close() //nolint:errcheck,gosec // G104: shutdown cleanup
			return
		}

		go client.WritePump()
		go client.ReadPump()
	}
}

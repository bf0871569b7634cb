package main

import (
	"github.com/gin-gonic/gin"

	"codeberg.org/anonchat/server/internal/board"
	"codeberg.org/anonchat/server/internal/config"
	"codeberg.org/anonchat/server/internal/identity"
	ws "codeberg.org/anonchat/server/internal/websocket"
)

// holds all dependencies and state for the API server
type Server struct {
	config   *config.Config
	board    board.Board
	identity *identity.Provider
	hub      *ws.Hub
	router   *gin.Engine
}

package websocket

import (
	"sync"

	"codeberg.org/anonchat/server/internal/logger"
)

// tracks every live connection so shutdown can notify and release them all.
// Unlike the board, the hub holds no protocol state; matchmaking and rooms
// live entirely on the board.
type Hub struct {
	mu           sync.Mutex
	clients      map[string]*Client
	shuttingDown bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// adds a client; returns false when the hub is already shutting down
func (h *Hub) Register(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.shuttingDown {
		return false
	}

	h.clients[client.ID] = client

	logger.Info("client connected",
		"client_id", client.ID,
		"user_id", client.UserID,
		"connections", len(h.clients),
	)

	return true
}

// removes a client; idempotent
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.clients[client.ID]; !exists {
		return
	}

	delete(h.clients, client.ID)

	logger.Info("client disconnected",
		"client_id", client.ID,
		"user_id", client.UserID,
		"connections", len(h.clients),
	)
}

// returns the number of live connections
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// notifies every client and tears their connections down
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.shuttingDown = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	logger.Info("closing websocket connections", "count", len(clients))

	for _, c := range clients {
		c.sendFrame(TypeServerShutdown, nil)
		c.Teardown()
	}
}

package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsWriteWait  = 10 * time.Second
)

// a single server frame as it appears on the wire
type wsFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// manages the websocket connection to the chat server and delivers decoded
// frames to the UI through a channel
type WSClient struct {
	endpoint string

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	userID    string

	frames chan wsFrame
}

// creates a new webSocket client
func NewWSClient() *WSClient {
	endpoint := os.Getenv("ANONCHAT_WS_ENDPOINT")
	if endpoint == "" {
		endpoint = "ws://localhost:8080/api/v1/ws"
	}

	return &WSClient{
		endpoint: endpoint,
		frames:   make(chan wsFrame, 64),
	}
}

// acquires an anonymous identity and establishes the websocket connection
func (c *WSClient) Connect(ctx context.Context, rest *RestClient) error {
	c.mu.Lock()

	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	identity, err := rest.AcquireIdentity(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire identity: %w", err)
	}

	endpoint := fmt.Sprintf("%s?token=%s", c.endpoint, url.QueryEscape(identity.Token))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	// keep the connection alive with ping/pong
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait)) //nolint:errcheck,gosec
		return nil
	})
	conn.SetReadDeadline(time.Now().Add(wsPongWait)) //nolint:errcheck,gosec

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.userID = identity.UserID
	c.mu.Unlock()

	go c.readPump()
	go c.pingPump()

	return nil
}

// returns the identity the server knows us by
func (c *WSClient) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

// returns whether the client is connected
func (c *WSClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// closes the webSocket connection
func (c *WSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close() //nolint:errcheck,gosec
		c.conn = nil
	}
	c.connected = false
}

// continuously reads frames and queues them for the UI
func (c *WSClient) readPump() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		if c.conn != nil {
			c.conn.Close() //nolint:errcheck,gosec
		}
		c.mu.Unlock()
		close(c.frames)
	}()

	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()

		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(wsPongWait)) //nolint:errcheck,gosec

		var frame wsFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		// drop frames the UI cannot keep up with rather than stalling reads
		select {
		case c.frames <- frame:
		default:
		}
	}
}

// sends periodic pings to keep the connection alive
func (c *WSClient) pingPump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		<-ticker.C
		c.mu.Lock()

		if !c.connected || c.conn == nil {
			c.mu.Unlock()
			return
		}

		c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)) //nolint:errcheck,gosec
		if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
			c.mu.Unlock()
			return
		}

		c.mu.Unlock()
	}
}

// sends one frame to the server
func (c *WSClient) send(frameType string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		return fmt.Errorf("not connected")
	}

	frame := wsFrame{Type: frameType}

	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		frame.Payload = encoded
	}

	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)) //nolint:errcheck,gosec
	return c.conn.WriteJSON(frame)
}

// client -> server frames

func (c *WSClient) JoinQueue() error {
	return c.send("join_queue", nil)
}

func (c *WSClient) LeaveQueue() error {
	return c.send("leave_queue", nil)
}

func (c *WSClient) SendMessage(text string) error {
	return c.send("message", map[string]string{"text": text})
}

func (c *WSClient) SendTyping(isTyping bool) error {
	return c.send("typing", map[string]bool{"is_typing": isTyping})
}

func (c *WSClient) LeaveRoom() error {
	return c.send("leave_room", nil)
}

// returns a tea.Cmd that connects to the chat server
func (c *WSClient) ConnectCmd(rest *RestClient) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := c.Connect(ctx, rest); err != nil {
			return ConnectionLostMsg{err: err}
		}

		return ConnectedMsg{userID: c.UserID()}
	}
}

// returns a tea.Cmd that blocks for the next server frame
func (c *WSClient) WaitForFrame() tea.Cmd {
	return func() tea.Msg {
		frame, ok := <-c.frames
		if !ok {
			return ConnectionLostMsg{err: fmt.Errorf("connection closed")}
		}

		return FrameMsg{Type: frame.Type, Payload: frame.Payload}
	}
}

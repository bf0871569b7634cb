package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"codeberg.org/anonchat/server/internal/board"
	"codeberg.org/anonchat/server/internal/chat"
	"codeberg.org/anonchat/server/internal/config"
	"codeberg.org/anonchat/server/internal/logger"
	"codeberg.org/anonchat/server/internal/match"
	"codeberg.org/anonchat/server/internal/presence"
	"codeberg.org/anonchat/server/internal/session"
)

// one connected chat participant: the bridge between a websocket connection
// and that participant's board client, match engine, and room. When the
// socket drops, closing the board client fires every disconnect cleanup the
// participant registered - queue entry, presence entry, room status.
type Client struct {
	ID     string
	UserID string

	conn *websocket.Conn
	hub  *Hub
	send chan []byte

	board    board.Client
	engine   *match.Engine
	sessions *session.Manager
	matching config.Matching
	limiter  *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	room         *session.Room
	debounce     *presence.TypingDebouncer
	waitingUnsub func()
	joining      bool
	closed       bool
}

// creates a client for an authenticated websocket connection
func NewClient(id, userID string, conn *websocket.Conn, hub *Hub, boardClient board.Client, matching config.Matching) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		ID:       id,
		UserID:   userID,
		conn:     conn,
		hub:      hub,
		send:     make(chan []byte, 256),
		board:    boardClient,
		engine:   match.NewEngine(boardClient, userID, matching),
		sessions: session.NewManager(boardClient),
		matching: matching,
		limiter:  rate.NewLimiter(rate.Limit(messageRatePerSecond), messageRateBurst),
		ctx:      ctx,
		cancel:   cancel,
	}

	c.engine.OnRetry(func(attempt int) {
		c.sendFrame(TypeQueueStatus, QueueStatusPayload{
			Retry:      attempt,
			MaxRetries: matching.MaxRetries,
		})
	})

	return c
}

// reads frames from the websocket connection until it drops, then tears the
// client down
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Teardown()
		c.conn.Close() //nolint:errcheck,gosec // G104: defer cleanup
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck,gosec // G104: websocket setup
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck,gosec // G104: pong handler
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket error", "client_id", c.ID, "user_id", c.UserID, "error", err)
			}
			break
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.sendError(errorBadFrame, "invalid frame format")
			continue
		}

		c.handleFrame(frame)
	}
}

// writes queued frames and keepalive pings to the websocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close() //nolint:errcheck,gosec // G104: defer cleanup
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck,gosec // G104: websocket timing

			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck,gosec // G104: close message
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck,gosec // G104: websocket timing
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// releases everything the connection owned; safe to call more than once.
// Closing the board client is what fires the store-driven disconnect
// cleanups.
func (c *Client) Teardown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	debounce := c.debounce
	waitingUnsub := c.waitingUnsub
	c.debounce = nil
	c.waitingUnsub = nil
	c.room = nil
	c.mu.Unlock()

	c.cancel()

	if debounce != nil {
		debounce.Stop()
	}

	if waitingUnsub != nil {
		waitingUnsub()
	}

	c.board.Close()
}

// dispatches one inbound frame
func (c *Client) handleFrame(frame Frame) {
	switch frame.Type {
	case TypeJoinQueue:
		c.handleJoinQueue()

	case TypeLeaveQueue:
		c.handleLeaveQueue()

	case TypeMessage:
		c.handleMessage(frame.Payload)

	case TypeTyping:
		c.handleTyping(frame.Payload)

	case TypeLeaveRoom:
		c.handleLeaveRoom()

	case TypePing:
		c.sendFrame(TypePong, nil)

	default:
		c.sendError(errorBadFrame, "unknown frame type")
	}
}

// starts a join attempt; the engine resolves it through whichever of its
// race winners lands first
func (c *Client) handleJoinQueue() {
	c.mu.Lock()
	if c.room != nil || c.joining {
		c.mu.Unlock()
		c.sendError(errorInvalidState, "already matched or queued")
		return
	}
	c.joining = true
	c.mu.Unlock()

	// live waiting count for the queue screen
	unsub, err := c.engine.SubscribeWaiting(func(waiting int) {
		c.sendFrame(TypeQueueStatus, QueueStatusPayload{
			Waiting:    waiting,
			Retry:      c.engine.Retries(),
			MaxRetries: c.matching.MaxRetries,
		})
	})
	if err != nil {
		logger.ErrorErr(err, "failed to subscribe waiting count", "user_id", c.UserID)
	} else {
		c.mu.Lock()
		c.waitingUnsub = unsub
		c.mu.Unlock()
	}

	go func() {
		roomID, err := c.engine.JoinQueue(c.ctx)

		c.mu.Lock()
		c.joining = false
		unsub := c.waitingUnsub
		c.waitingUnsub = nil
		c.mu.Unlock()

		if unsub != nil {
			unsub()
		}

		if err != nil {
			if errors.Is(err, match.ErrQueueLeft) || c.ctx.Err() != nil {
				return
			}

			logger.ErrorErr(err, "join queue failed", "user_id", c.UserID)
			c.sendError(errorMatchFailed, "failed to join the queue")
			return
		}

		c.enterRoom(roomID)
	}()
}

// abandons queueing
func (c *Client) handleLeaveQueue() {
	if err := c.engine.LeaveQueue(c.ctx); err != nil {
		logger.ErrorErr(err, "leave queue failed", "user_id", c.UserID)
	}

	c.sendFrame(TypeQueueLeft, nil)
}

// joins the resolved room and wires its events back over the socket
func (c *Client) enterRoom(roomID string) {
	hooks := session.Hooks{
		PartnerResolved: func(partnerID string) {
			c.sendFrame(TypePartnerResolved, PartnerResolvedPayload{PartnerID: partnerID})
		},
		PartnerPresence: func(online bool) {
			c.sendFrame(TypePartnerPresence, PartnerPresencePayload{Online: online})
		},
		PartnerTyping: func(typing bool) {
			c.sendFrame(TypePartnerTyping, PartnerTypingPayload{Typing: typing})
		},
		Messages: func(messages []chat.Message) {
			c.sendFrame(TypeMessages, MessagesPayload{Messages: messages})
		},
	}

	room, err := c.sessions.Enter(c.ctx, roomID, c.UserID, hooks)
	if err != nil {
		logger.ErrorErr(err, "failed to enter room", "room_id", roomID, "user_id", c.UserID)
		c.sendError(errorRoomFailed, "failed to enter the room")
		return
	}

	debounce := presence.NewTypingDebouncer(c.matching.TypingIdleWindow, func(typing bool) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := room.SetTyping(ctx, typing); err != nil && !errors.Is(err, board.ErrClientClosed) {
			logger.ErrorErr(err, "failed to update typing signal", "room_id", room.ID)
		}
	})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		debounce.Stop()
		return
	}
	c.room = room
	c.debounce = debounce
	c.mu.Unlock()

	c.sendFrame(TypeMatched, MatchedPayload{RoomID: roomID})
}

// appends a chat message to the current room
func (c *Client) handleMessage(payload json.RawMessage) {
	var msg MessagePayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.sendError(errorBadFrame, "invalid message payload")
		return
	}

	if len(msg.Text) > maxChatMessageSize {
		c.sendError(errorMessageTooLong, "message exceeds maximum length")
		return
	}

	if !c.limiter.Allow() {
		c.sendError(errorRateLimited, "sending messages too quickly")
		return
	}

	c.mu.Lock()
	room := c.room
	debounce := c.debounce
	c.mu.Unlock()

	if room == nil {
		c.sendError(errorInvalidState, "not in a room")
		return
	}

	if err := room.Send(c.ctx, msg.Text); err != nil {
		logger.ErrorErr(err, "failed to send message", "room_id", room.ID, "user_id", c.UserID)
		c.sendError(errorSendFailed, "failed to send message")
		return
	}

	// sending clears the typing signal immediately
	if debounce != nil {
		debounce.Sent()
	}
}

// feeds keystrokes into the typing debouncer
func (c *Client) handleTyping(payload json.RawMessage) {
	var typing TypingPayload
	if err := json.Unmarshal(payload, &typing); err != nil {
		c.sendError(errorBadFrame, "invalid typing payload")
		return
	}

	c.mu.Lock()
	debounce := c.debounce
	c.mu.Unlock()

	if debounce == nil {
		return
	}

	if typing.IsTyping {
		debounce.Keystroke()
	} else {
		debounce.Stop()
	}
}

// leaves the current room but keeps the connection alive for another match
func (c *Client) handleLeaveRoom() {
	c.mu.Lock()
	room := c.room
	debounce := c.debounce
	c.room = nil
	c.debounce = nil
	c.mu.Unlock()

	if room == nil {
		c.sendError(errorInvalidState, "not in a room")
		return
	}

	if debounce != nil {
		debounce.Stop()
	}

	if err := room.Leave(c.ctx); err != nil {
		logger.ErrorErr(err, "failed to leave room", "room_id", room.ID, "user_id", c.UserID)
	}

	c.sendFrame(TypeRoomLeft, nil)
}

// encodes and queues an outbound frame, dropping it if the client is slow
func (c *Client) sendFrame(frameType string, payload any) {
	data, err := NewFrame(frameType, payload)
	if err != nil {
		logger.ErrorErr(err, "failed to encode frame", "type", frameType, "client_id", c.ID)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- data:
	default:
		logger.Warn("send buffer full, dropping frame", "type", frameType, "client_id", c.ID)
	}
}

// queues an error frame
func (c *Client) sendError(code, message string) {
	c.sendFrame(TypeError, ErrorPayload{Code: code, Message: message})
}

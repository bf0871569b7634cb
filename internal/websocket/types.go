package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"codeberg.org/anonchat/server/internal/chat"
)

// frame type constants for websocket communication
const (
	// client -> server

	// asks to be paired with a stranger
	TypeJoinQueue = "join_queue"

	// abandons queueing before a match
	TypeLeaveQueue = "leave_queue"

	// sends a chat message to the current room
	TypeMessage = "message"

	// reports a keystroke (true) or an explicit typing stop (false)
	TypeTyping = "typing"

	// leaves the current room
	TypeLeaveRoom = "leave_room"

	// keeps the connection alive
	TypePing = "ping"

	// server -> client

	// waiting-count and retry-attempt updates while queued
	TypeQueueStatus = "queue_status"

	// a room was resolved for this client
	TypeMatched = "matched"

	// the partner identifier stabilized
	TypePartnerResolved = "partner_resolved"

	// full ordered message list, sent on every change
	TypeMessages = "messages"

	// partner typing state changed
	TypePartnerTyping = "partner_typing"

	// partner online state changed
	TypePartnerPresence = "partner_presence"

	// acknowledged leave_queue
	TypeQueueLeft = "queue_left"

	// acknowledged leave_room
	TypeRoomLeft = "room_left"

	// sent when an operation fails
	TypeError = "error"

	// sent in response to ping
	TypePong = "pong"

	// sent to all clients before shutdown
	TypeServerShutdown = "server_shutdown"
)

// client connection constants
const (
	// time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// maximum frame size allowed from peer
	maxMessageSize = 16 * 1024

	// maximum chat message length in characters
	maxChatMessageSize = 2000

	// sustained chat messages per second and burst allowance
	messageRatePerSecond = 4
	messageRateBurst     = 8
)

// error codes sent in error frames
const (
	errorBadFrame       = "bad_frame"
	errorInvalidState   = "invalid_state"
	errorMatchFailed    = "match_failed"
	errorRoomFailed     = "room_failed"
	errorSendFailed     = "send_failed"
	errorRateLimited    = "rate_limited"
	errorMessageTooLong = "message_too_long"
)

// a single websocket frame; Payload shape depends on Type
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type MessagePayload struct {
	Text string `json:"text"`
}

type TypingPayload struct {
	IsTyping bool `json:"is_typing"`
}

type QueueStatusPayload struct {
	Waiting    int `json:"waiting"`
	Retry      int `json:"retry"`
	MaxRetries int `json:"max_retries"`
}

type MatchedPayload struct {
	RoomID string `json:"room_id"`
}

type PartnerResolvedPayload struct {
	PartnerID string `json:"partner_id"`
}

type MessagesPayload struct {
	Messages []chat.Message `json:"messages"`
}

type PartnerTypingPayload struct {
	Typing bool `json:"typing"`
}

type PartnerPresencePayload struct {
	Online bool `json:"online"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// encodes a frame with its payload
func NewFrame(frameType string, payload any) ([]byte, error) {
	frame := Frame{Type: frameType}

	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s payload: %w", frameType, err)
		}
		frame.Payload = encoded
	}

	return json.Marshal(frame)
}

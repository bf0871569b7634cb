// Package chat is the append-only message log of a room. Messages are never
// edited or deleted, and nothing outlives the room: history is whatever the
// board currently holds.
package chat

import (
	"context"
	"sort"
	"strings"

	"codeberg.org/anonchat/server/internal/board"
)

// one chat message; ID is store-assigned and insertion-ordered, Timestamp is
// client-stamped
type Message struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Sender    string `json:"sender"`
	Timestamp int64  `json:"timestamp"`
}

// sends and observes messages for one participant of one room
type Channel struct {
	client board.Client
	roomID string
	selfID string
	now    func() int64
}

// creates a channel for a room participant
func NewChannel(client board.Client, roomID, selfID string, now func() int64) *Channel {
	return &Channel{client: client, roomID: roomID, selfID: selfID, now: now}
}

// appends a message; empty or whitespace-only text is dropped without error
func (ch *Channel) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	_, err := ch.client.Push(ctx, board.RoomMessagesPath(ch.roomID), map[string]any{
		"text":      text,
		"sender":    ch.selfID,
		"timestamp": ch.now(),
	})

	return err
}

// delivers the full current message list, sorted by timestamp ascending, on
// every change. Insertion order and timestamp order usually agree but are not
// guaranteed identical, so the sort is explicit.
func (ch *Channel) Subscribe(cb func(messages []Message)) (func(), error) {
	return ch.client.Subscribe(board.RoomMessagesPath(ch.roomID), func(snap board.Snapshot) {
		cb(decodeMessages(snap))
	})
}

// flattens a messages snapshot into a timestamp-ordered slice
func decodeMessages(snap board.Snapshot) []Message {
	keys := snap.Keys()
	messages := make([]Message, 0, len(keys))

	for _, id := range keys {
		entry := snap.Child(id)
		messages = append(messages, Message{
			ID:        id,
			Text:      entry.Child("text").Str(),
			Sender:    entry.Child("sender").Str(),
			Timestamp: entry.Child("timestamp").Int64(),
		})
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp < messages[j].Timestamp
	})

	return messages
}

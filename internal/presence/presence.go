// Package presence tracks per-room typing and online/offline state. Both are
// modeled as key existence on the board, never as mutable flags, so the
// board's disconnect cleanup can clear them with a plain delete.
package presence

import (
	"context"

	"codeberg.org/anonchat/server/internal/board"
)

// signals our own typing/online state in a room and watches the partner's
type Tracker struct {
	client board.Client
	roomID string
	selfID string
}

// creates a tracker for one participant of one room
func NewTracker(client board.Client, roomID, selfID string) *Tracker {
	return &Tracker{client: client, roomID: roomID, selfID: selfID}
}

// marks us online in the room and arms disconnect cleanup for the entry
func (t *Tracker) Connect(ctx context.Context) error {
	path := board.RoomConnectedPath(t.roomID, t.selfID)

	if err := t.client.Write(ctx, path, true); err != nil {
		return err
	}

	t.client.OnDisconnectDelete(path)
	return nil
}

// removes our presence and typing entries and disarms their cleanups
func (t *Tracker) Disconnect(ctx context.Context) error {
	connected := board.RoomConnectedPath(t.roomID, t.selfID)
	typing := board.RoomTypingPath(t.roomID, t.selfID)

	err := t.client.Delete(ctx, connected)

	if terr := t.client.Delete(ctx, typing); err == nil {
		err = terr
	}

	t.client.CancelDisconnect(connected)
	t.client.CancelDisconnect(typing)

	return err
}

// sets or clears our typing signal. The caller debounces; readers only do an
// existence check.
func (t *Tracker) SetTyping(ctx context.Context, typing bool) error {
	path := board.RoomTypingPath(t.roomID, t.selfID)

	if typing {
		if err := t.client.Write(ctx, path, true); err != nil {
			return err
		}

		// a dropped connection must not leave a stale typing key
		t.client.OnDisconnectDelete(path)
		return nil
	}

	return t.client.Delete(ctx, path)
}

// invokes cb with the partner's online state on every change. This is the
// single source of truth for "partner disconnected".
func (t *Tracker) SubscribePresence(partnerID string, cb func(online bool)) (func(), error) {
	return t.client.Subscribe(board.RoomConnectedPath(t.roomID, partnerID), func(snap board.Snapshot) {
		cb(snap.Exists())
	})
}

// invokes cb with the partner's typing state on every change
func (t *Tracker) SubscribeTyping(partnerID string, cb func(typing bool)) (func(), error) {
	return t.client.Subscribe(board.RoomTypingPath(t.roomID, partnerID), func(snap board.Snapshot) {
		cb(snap.Exists())
	})
}

// Package session manages the lifecycle of a joined room: presence wiring,
// partner resolution, and scoped teardown of every room subscription. Rooms
// are never destroyed explicitly; their terminal state is inferred from the
// absence of presence entries.
package session

import (
	"context"
	"time"

	"codeberg.org/anonchat/server/internal/board"
	"codeberg.org/anonchat/server/internal/chat"
	"codeberg.org/anonchat/server/internal/logger"
	"codeberg.org/anonchat/server/internal/presence"
)

// creates Room handles over one board client
type Manager struct {
	client board.Client
}

func NewManager(client board.Client) *Manager {
	return &Manager{client: client}
}

// joins a room: writes our presence entry (with disconnect cleanup), resolves
// the partner identifier from the participant set, and wires the hooks. The
// participant subscription may fire several times before the set stabilizes
// and tolerates the partner being temporarily absent.
func (m *Manager) Enter(ctx context.Context, roomID, selfID string, hooks Hooks) (*Room, error) {
	r := &Room{
		ID:            roomID,
		selfID:        selfID,
		client:        m.client,
		tracker:       presence.NewTracker(m.client, roomID, selfID),
		channel:       chat.NewChannel(m.client, roomID, selfID, func() int64 { return time.Now().UnixMilli() }),
		hooks:         hooks,
		partnerOnline: true,
	}

	if err := r.tracker.Connect(ctx); err != nil {
		return nil, err
	}

	unsub, err := m.client.Subscribe(board.RoomUsersPath(roomID), r.handleUsers)
	if err != nil {
		r.tracker.Disconnect(ctx) //nolint:errcheck,gosec // best-effort rollback
		return nil, err
	}
	r.addUnsub(unsub)

	if hooks.Messages != nil {
		msgUnsub, err := r.channel.Subscribe(hooks.Messages)
		if err != nil {
			r.Leave(ctx) //nolint:errcheck,gosec // best-effort rollback
			return nil, err
		}
		r.addUnsub(msgUnsub)
	}

	return r, nil
}

// picks the partner out of the participant set and, once it stabilizes,
// subscribes to the partner's presence and typing entries
func (r *Room) handleUsers(snap board.Snapshot) {
	var partnerID string

	for _, id := range snap.Keys() {
		if id != r.selfID {
			partnerID = id
			break
		}
	}

	if partnerID == "" {
		// our own write may be the only one visible yet
		return
	}

	r.mu.Lock()
	if r.left || r.partnerID != "" {
		r.mu.Unlock()
		return
	}
	r.partnerID = partnerID
	r.mu.Unlock()

	if r.hooks.PartnerResolved != nil {
		r.hooks.PartnerResolved(partnerID)
	}

	presenceUnsub, err := r.tracker.SubscribePresence(partnerID, r.handlePartnerPresence)
	if err != nil {
		logger.ErrorErr(err, "failed to subscribe partner presence", "room_id", r.ID)
	} else {
		r.addUnsub(presenceUnsub)
	}

	typingUnsub, err := r.tracker.SubscribeTyping(partnerID, r.handlePartnerTyping)
	if err != nil {
		logger.ErrorErr(err, "failed to subscribe partner typing", "room_id", r.ID)
	} else {
		r.addUnsub(typingUnsub)
	}
}

func (r *Room) handlePartnerPresence(online bool) {
	r.mu.Lock()
	r.partnerOnline = online
	r.mu.Unlock()

	if r.hooks.PartnerPresence != nil {
		r.hooks.PartnerPresence(online)
	}
}

func (r *Room) handlePartnerTyping(typing bool) {
	if r.hooks.PartnerTyping != nil {
		r.hooks.PartnerTyping(typing)
	}
}

// sends a message to the room's log
func (r *Room) Send(ctx context.Context, text string) error {
	return r.channel.Send(ctx, text)
}

// sets or clears our typing signal
func (r *Room) SetTyping(ctx context.Context, typing bool) error {
	return r.tracker.SetTyping(ctx, typing)
}

// leaves the room: removes our presence entry and cancels every room-scoped
// subscription. The room itself is never deleted; the partner may still be
// present, and per-participant disconnect cleanup handles the rest.
// Idempotent.
func (r *Room) Leave(ctx context.Context) error {
	r.mu.Lock()
	if r.left {
		r.mu.Unlock()
		return nil
	}
	r.left = true
	unsubs := r.unsubs
	r.unsubs = nil
	r.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}

	return r.tracker.Disconnect(ctx)
}

func (r *Room) addUnsub(unsub func()) {
	r.mu.Lock()

	if r.left {
		r.mu.Unlock()
		unsub()
		return
	}

	r.unsubs = append(r.unsubs, unsub)
	r.mu.Unlock()
}

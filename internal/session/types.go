package session

import (
	"sync"

	"codeberg.org/anonchat/server/internal/board"
	"codeberg.org/anonchat/server/internal/chat"
	"codeberg.org/anonchat/server/internal/presence"
)

// optional callbacks fired by a Room as its view of the shared state changes.
// Any of them may be nil. They run on board delivery goroutines and must not
// block.
type Hooks struct {
	// fired once when the partner identifier stabilizes
	PartnerResolved func(partnerID string)

	// fired with the partner's online state on every change
	PartnerPresence func(online bool)

	// fired with the partner's typing state on every change
	PartnerTyping func(typing bool)

	// fired with the full ordered message list on every change
	Messages func(messages []chat.Message)
}

// a joined room: the handle that owns presence, typing, and the message
// channel for one participant until Leave
type Room struct {
	ID     string
	selfID string

	client  board.Client
	tracker *presence.Tracker
	channel *chat.Channel
	hooks   Hooks

	mu            sync.Mutex
	partnerID     string
	partnerOnline bool
	left          bool
	unsubs        []func()
}

// returns the partner identifier, or "" while it is still unresolved
func (r *Room) PartnerID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.partnerID
}

// reports the partner's online state; optimistically true until the first
// presence callback so a fresh room never flashes "disconnected"
func (r *Room) PartnerOnline() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.partnerOnline
}

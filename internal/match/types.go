package match

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"codeberg.org/anonchat/server/internal/board"
	"codeberg.org/anonchat/server/internal/config"
)

// returned to waiters when LeaveQueue abandons an in-flight join
var ErrQueueLeft = errors.New("left the matchmaking queue")

// runs the queue-join / find-or-wait / retry protocol for one client
// identity. An engine owns no persistent state beyond its in-flight attempt;
// everything durable lives on the board.
type Engine struct {
	client  board.Client
	selfID  string
	cfg     config.Matching
	onRetry func(attempt int)

	mu      sync.Mutex
	pending *attempt
}

// creates an engine for the given identity. The identity must already be
// acquired; the engine never mints one.
func NewEngine(client board.Client, selfID string, cfg config.Matching) *Engine {
	return &Engine{
		client: client,
		selfID: selfID,
		cfg:    cfg,
	}
}

// sets a callback invoked with the attempt number on every active retry,
// for UI feedback
func (e *Engine) OnRetry(cb func(attempt int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onRetry = cb
}

// returns the number of active retries performed by the current or most
// recent join
func (e *Engine) Retries() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending == nil {
		return 0
	}

	return int(e.pending.retries.Load())
}

// one in-flight JoinQueue. Exactly one of the three race winners (immediate
// match, passive subscription, active retry) resolves it; the matchFound gate
// shuts the others out.
type attempt struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	roomID string
	err    error

	retries atomic.Int32

	mu          sync.Mutex
	matchFound  bool
	enqueued    bool
	unsubscribe func()
}

// marks the attempt resolved; returns false if another winner got there first
func (a *attempt) claim() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.matchFound {
		return false
	}

	a.matchFound = true
	return true
}

// reports whether the attempt has already been resolved
func (a *attempt) resolved() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.matchFound
}

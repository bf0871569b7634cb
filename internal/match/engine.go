// Package match implements the matchmaking protocol: an optimistic
// find-or-wait over the shared queue namespace, with no coordinator and no
// transactional store primitive. Races are tolerated, not prevented; the
// correctness goal is that every joining client eventually gets exactly one
// active room with a real partner.
package match

import (
	"context"
	"time"

	"codeberg.org/anonchat/server/internal/board"
	"codeberg.org/anonchat/server/internal/logger"
)

// joins the matchmaking queue and blocks until a room is resolved, the
// context is canceled, or LeaveQueue abandons the attempt. Re-entrant: a
// second call while one is in flight joins the in-flight attempt and returns
// its result.
func (e *Engine) JoinQueue(ctx context.Context) (string, error) {
	e.mu.Lock()

	a := e.pending
	if a == nil {
		actx, cancel := context.WithCancel(ctx)
		a = &attempt{
			ctx:    actx,
			cancel: cancel,
			done:   make(chan struct{}),
		}
		e.pending = a
		go e.run(a)
	}

	e.mu.Unlock()

	select {
	case <-a.done:
		return a.roomID, a.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// abandons queueing before a match: deletes our queue entry and cancels the
// room subscription and retry timers. Idempotent.
func (e *Engine) LeaveQueue(ctx context.Context) error {
	e.mu.Lock()
	a := e.pending
	e.pending = nil
	e.mu.Unlock()

	if a != nil && a.claim() {
		a.err = ErrQueueLeft
		a.cancel()
		e.teardown(a, true)
		close(a.done)
		return nil
	}

	// no attempt in flight; clear any leftover entry anyway
	if err := e.client.Delete(ctx, board.QueueEntryPath(e.selfID)); err != nil {
		return err
	}

	e.client.CancelDisconnect(board.QueueEntryPath(e.selfID))
	return nil
}

// reports the number of recent waiters other than ourselves on every queue
// change, for the waiting screen
func (e *Engine) SubscribeWaiting(cb func(waiting int)) (func(), error) {
	return e.client.Subscribe(board.QueuePath, func(snap board.Snapshot) {
		now := time.Now().UnixMilli()
		count := 0

		for _, id := range snap.Keys() {
			if id == e.selfID {
				continue
			}

			joinedAt := snap.Child(id).Child("timestamp").Int64()
			if now-joinedAt < e.cfg.RecencyWindow.Milliseconds() {
				count++
			}
		}

		cb(count)
	})
}

// drives one join attempt end to end
func (e *Engine) run(a *attempt) {
	// immediate match attempt before enqueueing
	if roomID := e.findMatch(a.ctx); roomID != "" {
		e.resolve(a, roomID, nil, false)
		return
	}

	if a.ctx.Err() != nil {
		e.resolve(a, "", a.ctx.Err(), false)
		return
	}

	// no candidate: enqueue ourselves and wait to be matched
	entry := map[string]any{
		"timestamp": time.Now().UnixMilli(),
		"status":    "waiting",
	}

	if err := e.client.Write(a.ctx, board.QueueEntryPath(e.selfID), entry); err != nil {
		// initial join failed outright; make sure no orphaned entry persists
		// before surfacing the failure
		e.cleanupQueueEntry()
		e.resolve(a, "", err, false)
		return
	}

	a.mu.Lock()
	a.enqueued = true
	a.mu.Unlock()

	// the board deletes our entry if the connection drops
	e.client.OnDisconnectDelete(board.QueueEntryPath(e.selfID))

	// passive path: someone else matches us and creates the room
	unsub, err := e.client.Subscribe(board.RoomsPath, func(snap board.Snapshot) {
		roomID := e.roomContainingSelf(snap)
		if roomID == "" {
			return
		}

		e.resolve(a, roomID, nil, true)
	})
	if err != nil {
		// subscription setup failure at startup is one of the two errors
		// that reach the caller
		e.cleanupQueueEntry()
		e.resolve(a, "", err, false)
		return
	}

	a.mu.Lock()
	a.unsubscribe = unsub
	a.mu.Unlock()

	// raced with an early passive resolution
	if a.resolved() {
		unsub()
		return
	}

	go e.retryLoop(a)
}

// active path: re-run the immediate match attempt on a fixed cadence until a
// match lands or retries are exhausted. Exhaustion is a state transition, not
// an error: we stay enqueued and remain matchable passively.
func (e *Engine) retryLoop(a *attempt) {
	ticker := time.NewTicker(e.cfg.RetryDelay)
	defer ticker.Stop()

	for attemptNo := 1; attemptNo <= e.cfg.MaxRetries; attemptNo++ {
		select {
		case <-a.ctx.Done():
			return
		case <-a.done:
			return
		case <-ticker.C:
		}

		if a.resolved() {
			return
		}

		a.retries.Store(int32(attemptNo))

		e.mu.Lock()
		onRetry := e.onRetry
		e.mu.Unlock()

		if onRetry != nil {
			onRetry(attemptNo)
		}

		if roomID := e.findMatch(a.ctx); roomID != "" {
			e.resolve(a, roomID, nil, true)
			return
		}
	}

	logger.Info("max retries reached, waiting for passive match",
		"user_id", e.selfID,
		"retries", e.cfg.MaxRetries,
	)
}

// the immediate match attempt: bulk-read the queue, pick the oldest recent
// candidate, confirm it still exists, create the room, then clear both queue
// entries. Any store failure or vanished candidate is "no match this
// attempt", never an error. Returns the new room id or "".
func (e *Engine) findMatch(ctx context.Context) string {
	snap, err := e.client.ReadOnce(ctx, board.QueuePath)
	if err != nil {
		logger.ErrorErr(err, "failed to read queue", "user_id", e.selfID)
		return ""
	}

	now := time.Now().UnixMilli()

	var candidateID string
	var candidateJoined int64

	for _, id := range snap.Keys() {
		if id == e.selfID {
			continue
		}

		joinedAt := snap.Child(id).Child("timestamp").Int64()

		// stale entries are skipped rather than matched; their cleanup may
		// simply not have fired yet
		if now-joinedAt >= e.cfg.RecencyWindow.Milliseconds() {
			continue
		}

		if candidateID == "" || joinedAt < candidateJoined ||
			(joinedAt == candidateJoined && id < candidateID) {
			candidateID = id
			candidateJoined = joinedAt
		}
	}

	if candidateID == "" {
		return ""
	}

	// the candidate may have been claimed between the bulk read and now
	confirm, err := e.client.ReadOnce(ctx, board.QueueEntryPath(candidateID))
	if err != nil || !confirm.Exists() {
		return ""
	}

	roomID := e.createRoom(ctx, candidateID, now)
	if roomID == "" {
		return ""
	}

	// room is visible before the queue entries vanish, so a racing third
	// party never observes a claimed entry without a room
	if err := e.client.Delete(ctx, board.QueueEntryPath(candidateID)); err != nil {
		logger.ErrorErr(err, "failed to remove partner queue entry", "partner_id", candidateID)
	}

	e.cleanupQueueEntry()

	return roomID
}

// creates the room for the matched pair; returns "" on failure
func (e *Engine) createRoom(ctx context.Context, partnerID string, now int64) string {
	roomID, err := e.client.Push(ctx, board.RoomsPath, map[string]any{
		"users": map[string]any{
			e.selfID:  true,
			partnerID: true,
		},
		"createdAt":    now,
		"lastActivity": now,
		"status":       board.RoomStatusActive,
	})
	if err != nil {
		logger.ErrorErr(err, "failed to create room", "user_id", e.selfID, "partner_id", partnerID)
		return ""
	}

	// the creator's disconnect marks the room inactive
	e.client.OnDisconnectSet(board.RoomStatusPath(roomID), board.RoomStatusInactive)

	return roomID
}

// scans a rooms snapshot for an active room whose participant set includes us
func (e *Engine) roomContainingSelf(snap board.Snapshot) string {
	for _, roomID := range snap.Keys() {
		room := snap.Child(roomID)

		if room.Child("status").Str() != board.RoomStatusActive {
			continue
		}

		if room.Child("users").Child(e.selfID).Bool() {
			return roomID
		}
	}

	return ""
}

// finishes an attempt exactly once; cleanup tears down the subscription and,
// when we were enqueued, our queue entry
func (e *Engine) resolve(a *attempt, roomID string, err error, cleanup bool) {
	if !a.claim() {
		return
	}

	a.roomID = roomID
	a.err = err

	if cleanup {
		e.teardown(a, true)
	} else {
		a.mu.Lock()
		unsub := a.unsubscribe
		a.mu.Unlock()

		if unsub != nil {
			unsub()
		}
	}

	e.mu.Lock()
	if e.pending == a {
		e.pending = nil
	}
	e.mu.Unlock()

	close(a.done)
}

// cancels the passive subscription and removes our queue entry
func (e *Engine) teardown(a *attempt, removeEntry bool) {
	a.mu.Lock()
	unsub := a.unsubscribe
	enqueued := a.enqueued
	a.mu.Unlock()

	if unsub != nil {
		unsub()
	}

	if enqueued && removeEntry {
		e.cleanupQueueEntry()
	}
}

// best-effort removal of our own queue entry plus its disconnect action
func (e *Engine) cleanupQueueEntry() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.client.Delete(ctx, board.QueueEntryPath(e.selfID)); err != nil {
		logger.ErrorErr(err, "failed to clean up queue entry", "user_id", e.selfID)
	}

	e.client.CancelDisconnect(board.QueueEntryPath(e.selfID))
}

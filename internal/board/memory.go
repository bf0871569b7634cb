package board

import (
	"context"
	"errors"
	"sync"
)

var ErrClientClosed = errors.New("board client is closed")

// in-process board backend. It is the canonical implementation of the
// board semantics and the one every test runs against: a mutex-guarded tree
// of nested maps, with one delivery goroutine per subscription so each
// subscriber observes changes in mutation order.
type MemoryBoard struct {
	mu      sync.Mutex
	root    map[string]any
	subs    map[int64]*subQueue
	nextSub int64
}

// creates an empty in-memory board
func NewMemoryBoard() *MemoryBoard {
	return &MemoryBoard{
		root: make(map[string]any),
		subs: make(map[int64]*subQueue),
	}
}

// stops all subscription delivery goroutines
func (b *MemoryBoard) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[int64]*subQueue)
	b.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}

	return nil
}

// creates a session-scoped client handle
func (b *MemoryBoard) NewClient() Client {
	return &memoryClient{board: b}
}

// sets value at path and notifies overlapping subscribers
func (b *MemoryBoard) write(path string, value any) {
	segments := splitPath(path)

	b.mu.Lock()
	setNode(b.root, segments, deepCopy(value))
	b.notifyLocked(segments)
	b.mu.Unlock()
}

// removes the subtree at path and notifies overlapping subscribers
func (b *MemoryBoard) delete(path string) {
	segments := splitPath(path)

	b.mu.Lock()
	deleteNode(b.root, segments)
	b.notifyLocked(segments)
	b.mu.Unlock()
}

// returns a copy of the subtree at path
func (b *MemoryBoard) read(path string) Snapshot {
	segments := splitPath(path)

	b.mu.Lock()
	value, ok := getNode(b.root, segments)
	if ok {
		value = deepCopy(value)
	}
	b.mu.Unlock()

	if !ok {
		return Snapshot{Path: path}
	}

	return Snapshot{Path: path, Value: value}
}

// registers a subscription and synchronously queues the initial snapshot
func (b *MemoryBoard) subscribe(path string, handler func(Snapshot)) func() {
	sub := &subQueue{
		path:    splitPath(path),
		pathStr: path,
		handler: handler,
	}
	sub.cond = sync.NewCond(&sub.mu)

	b.mu.Lock()
	b.nextSub++
	id := b.nextSub
	b.subs[id] = sub

	// initial value is delivered like any other change
	value, ok := getNode(b.root, sub.path)
	if ok {
		value = deepCopy(value)
	}
	sub.deliver(Snapshot{Path: path, Value: value})
	b.mu.Unlock()

	go sub.run()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		sub.stop()
	}
}

// queues the current subtree snapshot for every subscriber whose path
// overlaps the mutated path; callers hold b.mu so subscribers observe
// mutations in a single global order
func (b *MemoryBoard) notifyLocked(mutated []string) {
	for _, sub := range b.subs {
		if !pathsOverlap(sub.path, mutated) {
			continue
		}

		value, ok := getNode(b.root, sub.path)
		if ok {
			value = deepCopy(value)
		}

		sub.deliver(Snapshot{Path: sub.pathStr, Value: value})
	}
}

// a single subscriber with an ordered delivery queue
type subQueue struct {
	path    []string
	pathStr string
	handler func(Snapshot)

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Snapshot
	closed bool
}

// appends a snapshot to the delivery queue
func (s *subQueue) deliver(snap Snapshot) {
	s.mu.Lock()
	if !s.closed {
		s.queue = append(s.queue, snap)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

// drains the queue in order, invoking the handler outside any board lock
func (s *subQueue) run() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}

		if s.closed {
			s.mu.Unlock()
			return
		}

		snap := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.handler(snap)
	}
}

// stops delivery and discards anything still queued
func (s *subQueue) stop() {
	s.mu.Lock()
	s.closed = true
	s.queue = nil
	s.cond.Broadcast()
	s.mu.Unlock()
}

// a session-scoped handle onto a MemoryBoard
type memoryClient struct {
	board *MemoryBoard

	mu       sync.Mutex
	closed   bool
	unsubs   []func()
	cleanups []cleanupAction
}

// a deferred mutation to run on disconnect
type cleanupAction struct {
	path  string
	set   bool
	value any
}

func (c *memoryClient) Write(ctx context.Context, path string, value any) error {
	if err := c.check(ctx); err != nil {
		return err
	}

	c.board.write(path, value)
	return nil
}

func (c *memoryClient) Delete(ctx context.Context, path string) error {
	if err := c.check(ctx); err != nil {
		return err
	}

	c.board.delete(path)
	return nil
}

func (c *memoryClient) ReadOnce(ctx context.Context, path string) (Snapshot, error) {
	if err := c.check(ctx); err != nil {
		return Snapshot{Path: path}, err
	}

	return c.board.read(path), nil
}

func (c *memoryClient) Push(ctx context.Context, path string, value any) (string, error) {
	if err := c.check(ctx); err != nil {
		return "", err
	}

	key := newPushID()
	c.board.write(path+"/"+key, value)
	return key, nil
}

func (c *memoryClient) Subscribe(path string, handler func(Snapshot)) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClientClosed
	}

	unsub := c.board.subscribe(path, handler)
	c.unsubs = append(c.unsubs, unsub)
	return unsub, nil
}

func (c *memoryClient) OnDisconnectDelete(path string) {
	c.registerCleanup(cleanupAction{path: path})
}

func (c *memoryClient) OnDisconnectSet(path string, value any) {
	c.registerCleanup(cleanupAction{path: path, set: true, value: value})
}

func (c *memoryClient) CancelDisconnect(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.cleanups[:0]
	for _, a := range c.cleanups {
		if a.path != path {
			kept = append(kept, a)
		}
	}
	c.cleanups = kept
}

// runs disconnect cleanups in registration order, then cancels every
// subscription made through this handle
func (c *memoryClient) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cleanups := c.cleanups
	unsubs := c.unsubs
	c.cleanups = nil
	c.unsubs = nil
	c.mu.Unlock()

	for _, a := range cleanups {
		if a.set {
			c.board.write(a.path, a.value)
		} else {
			c.board.delete(a.path)
		}
	}

	for _, unsub := range unsubs {
		unsub()
	}
}

// registers an action, replacing any action already registered for the path
func (c *memoryClient) registerCleanup(action cleanupAction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	for i, a := range c.cleanups {
		if a.path == action.path {
			c.cleanups[i] = action
			return
		}
	}

	c.cleanups = append(c.cleanups, action)
}

// rejects operations on a closed handle or canceled context
func (c *memoryClient) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}

	return nil
}

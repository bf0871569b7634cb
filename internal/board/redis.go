package board

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"codeberg.org/anonchat/server/internal/logger"
)

const (
	redisKeyPrefix     = "board:"
	redisChangeChannel = "board:changes"

	redisOpTimeout = 5 * time.Second
)

// redis-backed board. Every leaf is a redis key under a shared prefix with a
// JSON-encoded value; change notification is a single pub/sub channel
// carrying the mutated path, and subscribers re-read their subtree on every
// overlapping notification. Disconnect cleanups run from the hosting process
// when the owning connection drops, since that is where transport loss is
// observed.
type RedisBoard struct {
	client *redis.Client
	pubsub *redis.PubSub

	mu      sync.Mutex
	subs    map[int64]*subQueue
	subPath map[int64][]string
	nextSub int64
	closed  bool
}

// creates a redis-backed board from a URL and verifies the connection
func NewRedisBoard(redisURL string) (*RedisBoard, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	b := &RedisBoard{
		client:  client,
		subs:    make(map[int64]*subQueue),
		subPath: make(map[int64][]string),
	}

	b.pubsub = client.Subscribe(context.Background(), redisChangeChannel)

	// confirm the subscription before anyone writes
	if _, err := b.pubsub.Receive(ctx); err != nil {
		client.Close() //nolint:errcheck,gosec // best-effort cleanup on init failure
		return nil, fmt.Errorf("failed to subscribe to change channel: %w", err)
	}

	go b.listen()

	logger.Info("connected to redis board")

	return b, nil
}

// stops change delivery and closes the redis connection
func (b *RedisBoard) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[int64]*subQueue)
	b.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}

	b.pubsub.Close() //nolint:errcheck,gosec // best-effort shutdown
	return b.client.Close()
}

// creates a session-scoped client handle
func (b *RedisBoard) NewClient() Client {
	return &redisClient{board: b}
}

// forwards change notifications to overlapping subscribers
func (b *RedisBoard) listen() {
	for msg := range b.pubsub.Channel() {
		mutated := splitPath(msg.Payload)

		b.mu.Lock()
		targets := make([]*subQueue, 0, 2)
		for id, sub := range b.subs {
			if pathsOverlap(b.subPath[id], mutated) {
				targets = append(targets, sub)
			}
		}
		b.mu.Unlock()

		for _, sub := range targets {
			ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
			snap, err := b.read(ctx, sub.pathStr)
			cancel()

			if err != nil {
				logger.ErrorErr(err, "failed to re-read subtree after change", "path", sub.pathStr)
				continue
			}

			sub.deliver(snap)
		}
	}
}

// replaces the subtree at path with value and publishes the change
func (b *RedisBoard) write(ctx context.Context, path string, value any) error {
	leaves := make(map[string]string)
	if err := flattenValue(path, value, leaves); err != nil {
		return err
	}

	stale, err := b.keysUnder(ctx, path)
	if err != nil {
		return err
	}

	pipe := b.client.TxPipeline()
	if len(stale) > 0 {
		pipe.Del(ctx, stale...)
	}
	for leafPath, encoded := range leaves {
		pipe.Set(ctx, redisKeyPrefix+leafPath, encoded, 0)
	}
	pipe.Publish(ctx, redisChangeChannel, path)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// removes the subtree at path and publishes the change
func (b *RedisBoard) delete(ctx context.Context, path string) error {
	keys, err := b.keysUnder(ctx, path)
	if err != nil {
		return err
	}

	pipe := b.client.TxPipeline()
	if len(keys) > 0 {
		pipe.Del(ctx, keys...)
	}
	pipe.Publish(ctx, redisChangeChannel, path)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}

	return nil
}

// assembles the current subtree snapshot at path
func (b *RedisBoard) read(ctx context.Context, path string) (Snapshot, error) {
	keys, err := b.keysUnder(ctx, path)
	if err != nil {
		return Snapshot{Path: path}, err
	}

	if len(keys) == 0 {
		return Snapshot{Path: path}, nil
	}

	values, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		return Snapshot{Path: path}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	base := splitPath(path)
	root := make(map[string]any)

	for i, key := range keys {
		raw, ok := values[i].(string)
		if !ok {
			continue // expired between scan and read
		}

		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			logger.ErrorErr(err, "skipping undecodable board value", "key", key)
			continue
		}

		leafSegments := splitPath(strings.TrimPrefix(key, redisKeyPrefix))
		setNode(root, leafSegments, decoded)
	}

	value, ok := getNode(root, base)
	if !ok {
		return Snapshot{Path: path}, nil
	}

	return Snapshot{Path: path, Value: value}, nil
}

// registers a subscription and delivers the initial snapshot
func (b *RedisBoard) subscribe(path string, handler func(Snapshot)) (func(), error) {
	sub := &subQueue{
		path:    splitPath(path),
		pathStr: path,
		handler: handler,
	}
	sub.cond = sync.NewCond(&sub.mu)

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	snap, err := b.read(ctx, path)
	cancel()

	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClientClosed
	}
	b.nextSub++
	id := b.nextSub
	b.subs[id] = sub
	b.subPath[id] = sub.path
	sub.deliver(snap)
	b.mu.Unlock()

	go sub.run()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		delete(b.subPath, id)
		b.mu.Unlock()
		sub.stop()
	}, nil
}

// lists the redis keys that make up the subtree at path
func (b *RedisBoard) keysUnder(ctx context.Context, path string) ([]string, error) {
	keys := make([]string, 0, 8)

	// exact leaf
	exact := redisKeyPrefix + path
	if n, err := b.client.Exists(ctx, exact).Result(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", path, err)
	} else if n > 0 {
		keys = append(keys, exact)
	}

	var cursor uint64
	for {
		batch, next, err := b.client.Scan(ctx, cursor, exact+"/*", 256).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", path, err)
		}

		keys = append(keys, batch...)

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}

// JSON-encodes value into its leaf keys under base
func flattenValue(base string, value any, out map[string]string) error {
	if branch, ok := value.(map[string]any); ok {
		for k, child := range branch {
			if err := flattenValue(base+"/"+k, child, out); err != nil {
				return err
			}
		}
		return nil
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value at %s: %w", base, err)
	}

	out[base] = string(encoded)
	return nil
}

// a session-scoped handle onto a RedisBoard
type redisClient struct {
	board *RedisBoard

	mu       sync.Mutex
	closed   bool
	unsubs   []func()
	cleanups []cleanupAction
}

func (c *redisClient) Write(ctx context.Context, path string, value any) error {
	if err := c.check(ctx); err != nil {
		return err
	}

	return c.board.write(ctx, path, value)
}

func (c *redisClient) Delete(ctx context.Context, path string) error {
	if err := c.check(ctx); err != nil {
		return err
	}

	return c.board.delete(ctx, path)
}

func (c *redisClient) ReadOnce(ctx context.Context, path string) (Snapshot, error) {
	if err := c.check(ctx); err != nil {
		return Snapshot{Path: path}, err
	}

	return c.board.read(ctx, path)
}

func (c *redisClient) Push(ctx context.Context, path string, value any) (string, error) {
	if err := c.check(ctx); err != nil {
		return "", err
	}

	key := newPushID()
	if err := c.board.write(ctx, path+"/"+key, value); err != nil {
		return "", err
	}

	return key, nil
}

func (c *redisClient) Subscribe(path string, handler func(Snapshot)) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClientClosed
	}

	unsub, err := c.board.subscribe(path, handler)
	if err != nil {
		return nil, err
	}

	c.unsubs = append(c.unsubs, unsub)
	return unsub, nil
}

func (c *redisClient) OnDisconnectDelete(path string) {
	c.registerCleanup(cleanupAction{path: path})
}

func (c *redisClient) OnDisconnectSet(path string, value any) {
	c.registerCleanup(cleanupAction{path: path, set: true, value: value})
}

func (c *redisClient) CancelDisconnect(path string) {
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
func (c *redisClient) Close() {
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
		ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)

		var err error
		if a.set {
			err = c.board.write(ctx, a.path, a.value)
		} else {
			err = c.board.delete(ctx, a.path)
		}
		cancel()

		if err != nil {
			logger.ErrorErr(err, "disconnect cleanup failed", "path", a.path)
		}
	}

	for _, unsub := range unsubs {
		unsub()
	}
}

// registers an action, replacing any action already registered for the path
func (c *redisClient) registerCleanup(action cleanupAction) {
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
func (c *redisClient) check(ctx context.Context) error {
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

package match

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/anonchat/server/internal/board"
	"codeberg.org/anonchat/server/internal/config"
)

func testMatching() config.Matching {
	return config.Matching{
		RecencyWindow:    30 * time.Second,
		RetryDelay:       25 * time.Millisecond,
		MaxRetries:       3,
		TypingIdleWindow: time.Second,
	}
}

// blocks until the given user has a visible queue entry
func waitEnqueued(t *testing.T, b board.Board, userID string) {
	t.Helper()

	client := b.NewClient()
	defer client.Close()

	require.Eventually(t, func() bool {
		snap, err := client.ReadOnce(context.Background(), board.QueueEntryPath(userID))
		return err == nil && snap.Exists()
	}, 2*time.Second, 5*time.Millisecond, "queue entry for %s never appeared", userID)
}

// asserts the resolved room is active and holds exactly the expected pair
func requireRoom(t *testing.T, b board.Board, roomID string, users ...string) {
	t.Helper()

	client := b.NewClient()
	defer client.Close()

	snap, err := client.ReadOnce(context.Background(), board.RoomPath(roomID))
	require.NoError(t, err)
	require.True(t, snap.Exists())

	assert.Equal(t, board.RoomStatusActive, snap.Child("status").Str())
	assert.ElementsMatch(t, users, snap.Child("users").Keys())
	assert.NotZero(t, snap.Child("createdAt").Int64())
}

func TestPassiveWaiterIsMatchedByLaterJoiner(t *testing.T) {
	b := board.NewMemoryBoard()
	defer b.Close()

	alice := NewEngine(b.NewClient(), "alice", testMatching())
	bob := NewEngine(b.NewClient(), "bob", testMatching())

	aliceRoom := make(chan string, 1)
	go func() {
		roomID, err := alice.JoinQueue(context.Background())
		require.NoError(t, err)
		aliceRoom <- roomID
	}()

	waitEnqueued(t, b, "alice")

	bobRoom, err := bob.JoinQueue(context.Background())
	require.NoError(t, err)

	select {
	case got := <-aliceRoom:
		assert.Equal(t, bobRoom, got)
	case <-time.After(2 * time.Second):
		t.Fatal("alice never resolved")
	}

	requireRoom(t, b, bobRoom, "alice", "bob")

	// neither queue entry survives the match
	client := b.NewClient()
	defer client.Close()

	snap, err := client.ReadOnce(context.Background(), board.QueuePath)
	require.NoError(t, err)
	assert.False(t, snap.Child("alice").Exists())
	assert.False(t, snap.Child("bob").Exists())
}

func TestStaggeredJoinersAllResolveInPairs(t *testing.T) {
	b := board.NewMemoryBoard()
	defer b.Close()

	ids := []string{"u1", "u2", "u3", "u4", "u5", "u6"}
	rooms := make(map[string]string)

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			engine := NewEngine(b.NewClient(), id, testMatching())
			roomID, err := engine.JoinQueue(context.Background())
			require.NoError(t, err)

			mu.Lock()
			rooms[id] = roomID
			mu.Unlock()
		}(id)

		// stagger so each joiner observes the previous waiter
		waitEnqueued(t, b, id)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("not every joiner resolved")
	}

	client := b.NewClient()
	defer client.Close()

	// every client landed in a room whose pair includes itself
	for _, id := range ids {
		snap, err := client.ReadOnce(context.Background(), board.RoomPath(rooms[id]))
		require.NoError(t, err)
		require.True(t, snap.Exists(), "room for %s missing", id)

		users := snap.Child("users").Keys()
		assert.Len(t, users, 2)
		assert.Contains(t, users, id)
	}

	// pairing is mutual: both sides of each room agree on its id
	byRoom := make(map[string][]string)
	for id, roomID := range rooms {
		byRoom[roomID] = append(byRoom[roomID], id)
	}
	for roomID, members := range byRoom {
		assert.Len(t, members, 2, "room %s", roomID)
	}
}

func TestJoinQueueIsIdempotentWhileInFlight(t *testing.T) {
	b := board.NewMemoryBoard()
	defer b.Close()

	alice := NewEngine(b.NewClient(), "alice", testMatching())

	results := make(chan string, 2)
	for i := 0; i < 2; i++ {
		go func() {
			roomID, err := alice.JoinQueue(context.Background())
			require.NoError(t, err)
			results <- roomID
		}()
	}

	waitEnqueued(t, b, "alice")

	// a second concurrent join never duplicates the queue entry
	client := b.NewClient()
	defer client.Close()

	snap, err := client.ReadOnce(context.Background(), board.QueuePath)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, snap.Keys())

	bob := NewEngine(b.NewClient(), "bob", testMatching())
	bobRoom, err := bob.JoinQueue(context.Background())
	require.NoError(t, err)

	// both waiters observe the same resolution
	for i := 0; i < 2; i++ {
		select {
		case got := <-results:
			assert.Equal(t, bobRoom, got)
		case <-time.After(2 * time.Second):
			t.Fatal("join waiter never resolved")
		}
	}
}

func TestStaleQueueEntriesAreNotMatched(t *testing.T) {
	b := board.NewMemoryBoard()
	defer b.Close()

	cfg := testMatching()
	cfg.MaxRetries = 1

	seed := b.NewClient()
	defer seed.Close()

	// an abandoned entry past the recency window
	require.NoError(t, seed.Write(context.Background(), board.QueueEntryPath("ghost"), map[string]any{
		"timestamp": time.Now().Add(-time.Minute).UnixMilli(),
		"status":    "waiting",
	}))

	bob := NewEngine(b.NewClient(), "bob", cfg)

	go func() {
		_, _ = bob.JoinQueue(context.Background())
	}()

	waitEnqueued(t, b, "bob")
	time.Sleep(4 * cfg.RetryDelay) // let retries exhaust

	snap, err := seed.ReadOnce(context.Background(), board.RoomsPath)
	require.NoError(t, err)
	assert.False(t, snap.Exists(), "stale entry must never produce a room")

	// bob is still enqueued and matchable
	snap, err = seed.ReadOnce(context.Background(), board.QueueEntryPath("bob"))
	require.NoError(t, err)
	assert.True(t, snap.Exists())
}

func TestRetryExhaustionStillMatchesPassively(t *testing.T) {
	b := board.NewMemoryBoard()
	defer b.Close()

	cfg := testMatching()
	cfg.MaxRetries = 1

	alice := NewEngine(b.NewClient(), "alice", cfg)

	var retryMu sync.Mutex
	var retryAttempts []int
	alice.OnRetry(func(attempt int) {
		retryMu.Lock()
		retryAttempts = append(retryAttempts, attempt)
		retryMu.Unlock()
	})

	aliceRoom := make(chan string, 1)
	go func() {
		roomID, err := alice.JoinQueue(context.Background())
		require.NoError(t, err)
		aliceRoom <- roomID
	}()

	waitEnqueued(t, b, "alice")
	time.Sleep(4 * cfg.RetryDelay) // retries exhausted, attempt still live

	retryMu.Lock()
	assert.Equal(t, []int{1}, retryAttempts)
	retryMu.Unlock()

	bob := NewEngine(b.NewClient(), "bob", cfg)
	bobRoom, err := bob.JoinQueue(context.Background())
	require.NoError(t, err)

	select {
	case got := <-aliceRoom:
		assert.Equal(t, bobRoom, got)
	case <-time.After(2 * time.Second):
		t.Fatal("exhausted waiter was never matched passively")
	}
}

func TestLeaveQueueAbandonsAttempt(t *testing.T) {
	b := board.NewMemoryBoard()
	defer b.Close()

	alice := NewEngine(b.NewClient(), "alice", testMatching())

	joinErr := make(chan error, 1)
	go func() {
		_, err := alice.JoinQueue(context.Background())
		joinErr <- err
	}()

	waitEnqueued(t, b, "alice")

	require.NoError(t, alice.LeaveQueue(context.Background()))

	select {
	case err := <-joinErr:
		assert.ErrorIs(t, err, ErrQueueLeft)
	case <-time.After(2 * time.Second):
		t.Fatal("JoinQueue did not return after LeaveQueue")
	}

	client := b.NewClient()
	defer client.Close()

	snap, err := client.ReadOnce(context.Background(), board.QueueEntryPath("alice"))
	require.NoError(t, err)
	assert.False(t, snap.Exists())

	// a departed waiter is not matchable
	bob := NewEngine(b.NewClient(), "bob", testMatching())
	go func() {
		_, _ = bob.JoinQueue(context.Background())
	}()
	waitEnqueued(t, b, "bob")

	snap, err = client.ReadOnce(context.Background(), board.RoomsPath)
	require.NoError(t, err)
	assert.False(t, snap.Exists())
}

func TestLeaveQueueWithoutJoinIsHarmless(t *testing.T) {
	b := board.NewMemoryBoard()
	defer b.Close()

	alice := NewEngine(b.NewClient(), "alice", testMatching())
	require.NoError(t, alice.LeaveQueue(context.Background()))
	require.NoError(t, alice.LeaveQueue(context.Background()))
}

func TestJoinQueueHonorsContextCancel(t *testing.T) {
	b := board.NewMemoryBoard()
	defer b.Close()

	alice := NewEngine(b.NewClient(), "alice", testMatching())

	ctx, cancel := context.WithCancel(context.Background())

	joinErr := make(chan error, 1)
	go func() {
		_, err := alice.JoinQueue(ctx)
		joinErr <- err
	}()

	waitEnqueued(t, b, "alice")
	cancel()

	select {
	case err := <-joinErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("JoinQueue did not observe cancellation")
	}
}

func TestOldestWaiterIsPreferred(t *testing.T) {
	b := board.NewMemoryBoard()
	defer b.Close()

	seed := b.NewClient()
	defer seed.Close()

	now := time.Now().UnixMilli()

	require.NoError(t, seed.Write(context.Background(), board.QueueEntryPath("newer"), map[string]any{
		"timestamp": now - 1000,
		"status":    "waiting",
	}))
	require.NoError(t, seed.Write(context.Background(), board.QueueEntryPath("older"), map[string]any{
		"timestamp": now - 5000,
		"status":    "waiting",
	}))

	bob := NewEngine(b.NewClient(), "bob", testMatching())
	roomID, err := bob.JoinQueue(context.Background())
	require.NoError(t, err)

	requireRoom(t, b, roomID, "bob", "older")

	snap, err := seed.ReadOnce(context.Background(), board.QueueEntryPath("newer"))
	require.NoError(t, err)
	assert.True(t, snap.Exists(), "the unmatched waiter keeps its entry")
}

func TestSubscribeWaitingCountsRecentOthers(t *testing.T) {
	b := board.NewMemoryBoard()
	defer b.Close()

	seed := b.NewClient()
	defer seed.Close()

	now := time.Now().UnixMilli()

	require.NoError(t, seed.Write(context.Background(), board.QueueEntryPath("alice"), map[string]any{
		"timestamp": now,
		"status":    "waiting",
	}))
	require.NoError(t, seed.Write(context.Background(), board.QueueEntryPath("recent"), map[string]any{
		"timestamp": now - 1000,
		"status":    "waiting",
	}))
	require.NoError(t, seed.Write(context.Background(), board.QueueEntryPath("stale"), map[string]any{
		"timestamp": now - time.Minute.Milliseconds(),
		"status":    "waiting",
	}))

	alice := NewEngine(b.NewClient(), "alice", testMatching())

	counts := make(chan int, 8)
	unsub, err := alice.SubscribeWaiting(func(waiting int) {
		counts <- waiting
	})
	require.NoError(t, err)
	defer unsub()

	// self and stale entries are both excluded
	select {
	case count := <-counts:
		assert.Equal(t, 1, count)
	case <-time.After(2 * time.Second):
		t.Fatal("no waiting count delivered")
	}
}

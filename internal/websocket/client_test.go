package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/anonchat/server/internal/board"
	"codeberg.org/anonchat/server/internal/config"
)

// The pumps are the only code touching the network connection, so a client
// built without one exercises the full frame protocol: handleFrame consumes
// inbound frames and the send channel yields the outbound ones.

func fastMatching() config.Matching {
	return config.Matching{
		RecencyWindow:    30 * time.Second,
		RetryDelay:       25 * time.Millisecond,
		MaxRetries:       3,
		TypingIdleWindow: 50 * time.Millisecond,
	}
}

func newTestClient(t *testing.T, b board.Board, hub *Hub, userID string) *Client {
	t.Helper()

	c := NewClient("conn-"+userID, userID, nil, hub, b.NewClient(), fastMatching())
	require.True(t, hub.Register(c))
	t.Cleanup(func() {
		hub.Unregister(c)
		c.Teardown()
	})

	return c
}

// sends an inbound frame the way the read pump would
func deliver(t *testing.T, c *Client, frameType string, payload any) {
	t.Helper()

	raw, err := NewFrame(frameType, payload)
	require.NoError(t, err)

	var frame Frame
	require.NoError(t, json.Unmarshal(raw, &frame))

	c.handleFrame(frame)
}

// drains outbound frames until one of the wanted type arrives
func awaitFrame(t *testing.T, c *Client, frameType string) Frame {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case raw, ok := <-c.send:
			require.True(t, ok, "send channel closed while waiting for %s", frameType)

			var frame Frame
			require.NoError(t, json.Unmarshal(raw, &frame))

			if frame.Type == frameType {
				return frame
			}
			if frame.Type == TypeError {
				var errPayload ErrorPayload
				require.NoError(t, json.Unmarshal(frame.Payload, &errPayload))
				t.Fatalf("error frame %q while waiting for %s: %s", errPayload.Code, frameType, errPayload.Message)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s frame", frameType)
		}
	}
}

func awaitErrorCode(t *testing.T, c *Client, code string) {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case raw := <-c.send:
			var frame Frame
			require.NoError(t, json.Unmarshal(raw, &frame))

			if frame.Type != TypeError {
				continue
			}

			var payload ErrorPayload
			require.NoError(t, json.Unmarshal(frame.Payload, &payload))
			assert.Equal(t, code, payload.Code)
			return
		case <-deadline:
			t.Fatalf("timed out waiting for %s error", code)
		}
	}
}

// blocks until the given user has a visible queue entry
func awaitQueueEntry(t *testing.T, brd board.Board, userID string) {
	t.Helper()

	probe := brd.NewClient()
	defer probe.Close()

	require.Eventually(t, func() bool {
		snap, err := probe.ReadOnce(context.Background(), board.QueueEntryPath(userID))
		return err == nil && snap.Exists()
	}, 2*time.Second, 5*time.Millisecond)
}

// joins a first, waits for its queue entry, then joins b so the match
// resolves through b's immediate attempt
func matchPair(t *testing.T, brd board.Board, a, b *Client) string {
	t.Helper()

	deliver(t, a, TypeJoinQueue, nil)
	awaitQueueEntry(t, brd, a.UserID)
	deliver(t, b, TypeJoinQueue, nil)

	var aMatched, bMatched MatchedPayload
	require.NoError(t, json.Unmarshal(awaitFrame(t, a, TypeMatched).Payload, &aMatched))
	require.NoError(t, json.Unmarshal(awaitFrame(t, b, TypeMatched).Payload, &bMatched))

	require.Equal(t, aMatched.RoomID, bMatched.RoomID)
	return aMatched.RoomID
}

func TestJoinQueuePairsTwoClients(t *testing.T) {
	b := board.NewMemoryBoard()
	defer b.Close()

	hub := NewHub()
	alice := newTestClient(t, b, hub, "alice")
	bob := newTestClient(t, b, hub, "bob")

	roomID := matchPair(t, b, alice, bob)
	assert.NotEmpty(t, roomID)

	// each side learns the other's identifier
	var resolved PartnerResolvedPayload
	require.NoError(t, json.Unmarshal(awaitFrame(t, alice, TypePartnerResolved).Payload, &resolved))
	assert.Equal(t, "bob", resolved.PartnerID)

	require.NoError(t, json.Unmarshal(awaitFrame(t, bob, TypePartnerResolved).Payload, &resolved))
	assert.Equal(t, "alice", resolved.PartnerID)
}

func TestMessageReachesPartner(t *testing.T) {
	b := board.NewMemoryBoard()
	defer b.Close()

	hub := NewHub()
	alice := newTestClient(t, b, hub, "alice")
	bob := newTestClient(t, b, hub, "bob")

	matchPair(t, b, alice, bob)

	deliver(t, alice, TypeMessage, MessagePayload{Text: "hello"})

	deadline := time.After(3 * time.Second)
	for {
		frame := awaitFrame(t, bob, TypeMessages)

		var payload MessagesPayload
		require.NoError(t, json.Unmarshal(frame.Payload, &payload))

		if len(payload.Messages) == 0 {
			select {
			case <-deadline:
				t.Fatal("message never reached the partner")
			default:
				continue
			}
		}

		assert.Equal(t, "hello", payload.Messages[0].Text)
		assert.Equal(t, "alice", payload.Messages[0].Sender)
		return
	}
}

func TestTypingSignalReachesPartner(t *testing.T) {
	b := board.NewMemoryBoard()
	defer b.Close()

	hub := NewHub()
	alice := newTestClient(t, b, hub, "alice")
	bob := newTestClient(t, b, hub, "bob")

	matchPair(t, b, alice, bob)

	deliver(t, alice, TypeTyping, TypingPayload{IsTyping: true})

	deadline := time.After(3 * time.Second)
	sawTyping := false
	for !sawTyping {
		frame := awaitFrame(t, bob, TypePartnerTyping)

		var payload PartnerTypingPayload
		require.NoError(t, json.Unmarshal(frame.Payload, &payload))
		sawTyping = payload.Typing

		select {
		case <-deadline:
			t.Fatal("partner never saw typing")
		default:
		}
	}

	// the idle window elapses with no further keystrokes
	frame := awaitFrame(t, bob, TypePartnerTyping)
	var payload PartnerTypingPayload
	require.NoError(t, json.Unmarshal(frame.Payload, &payload))
	assert.False(t, payload.Typing)
}

func TestLeaveRoomKeepsConnectionUsable(t *testing.T) {
	b := board.NewMemoryBoard()
	defer b.Close()

	hub := NewHub()
	alice := newTestClient(t, b, hub, "alice")
	bob := newTestClient(t, b, hub, "bob")

	matchPair(t, b, alice, bob)

	deliver(t, alice, TypeLeaveRoom, nil)
	awaitFrame(t, alice, TypeRoomLeft)

	// bob sees alice go offline
	deadline := time.After(3 * time.Second)
	for {
		frame := awaitFrame(t, bob, TypePartnerPresence)

		var payload PartnerPresencePayload
		require.NoError(t, json.Unmarshal(frame.Payload, &payload))
		if !payload.Online {
			break
		}

		select {
		case <-deadline:
			t.Fatal("partner never observed the departure")
		default:
		}
	}

	// a second leave is an invalid state, not a crash
	deliver(t, alice, TypeLeaveRoom, nil)
	awaitErrorCode(t, alice, errorInvalidState)
}

func TestLeaveQueueAcknowledged(t *testing.T) {
	b := board.NewMemoryBoard()
	defer b.Close()

	hub := NewHub()
	alice := newTestClient(t, b, hub, "alice")

	deliver(t, alice, TypeJoinQueue, nil)
	deliver(t, alice, TypeLeaveQueue, nil)
	awaitFrame(t, alice, TypeQueueLeft)
}

func TestMessageOutsideRoomIsRejected(t *testing.T) {
	b := board.NewMemoryBoard()
	defer b.Close()

	hub := NewHub()
	alice := newTestClient(t, b, hub, "alice")

	deliver(t, alice, TypeMessage, MessagePayload{Text: "hello"})
	awaitErrorCode(t, alice, errorInvalidState)
}

func TestOversizedMessageIsRejected(t *testing.T) {
	b := board.NewMemoryBoard()
	defer b.Close()

	hub := NewHub()
	alice := newTestClient(t, b, hub, "alice")

	huge := make([]byte, maxChatMessageSize+1)
	for i := range huge {
		huge[i] = 'a'
	}

	deliver(t, alice, TypeMessage, MessagePayload{Text: string(huge)})
	awaitErrorCode(t, alice, errorMessageTooLong)
}

func TestMessageRateIsLimited(t *testing.T) {
	b := board.NewMemoryBoard()
	defer b.Close()

	hub := NewHub()
	alice := newTestClient(t, b, hub, "alice")
	bob := newTestClient(t, b, hub, "bob")

	matchPair(t, b, alice, bob)

	for i := 0; i < messageRateBurst*2; i++ {
		deliver(t, alice, TypeMessage, MessagePayload{Text: "spam"})
	}

	awaitErrorCode(t, alice, errorRateLimited)
}

func TestUnknownFrameTypeIsRejected(t *testing.T) {
	b := board.NewMemoryBoard()
	defer b.Close()

	hub := NewHub()
	alice := newTestClient(t, b, hub, "alice")

	deliver(t, alice, "bogus", nil)
	awaitErrorCode(t, alice, errorBadFrame)
}

func TestPingPong(t *testing.T) {
	b := board.NewMemoryBoard()
	defer b.Close()

	hub := NewHub()
	alice := newTestClient(t, b, hub, "alice")

	deliver(t, alice, TypePing, nil)
	awaitFrame(t, alice, TypePong)
}

package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/anonchat/server/internal/board"
)

func TestSendDropsBlankText(t *testing.T) {
	b := board.NewMemoryBoard()
	defer b.Close()

	client := b.NewClient()
	ch := NewChannel(client, "room1", "alice", func() int64 { return 1000 })

	require.NoError(t, ch.Send(context.Background(), ""))
	require.NoError(t, ch.Send(context.Background(), "   "))
	require.NoError(t, ch.Send(context.Background(), "\n\t"))

	snap, err := client.ReadOnce(context.Background(), board.RoomMessagesPath("room1"))
	require.NoError(t, err)
	assert.False(t, snap.Exists())
}

func TestSendPreservesInteriorWhitespace(t *testing.T) {
	b := board.NewMemoryBoard()
	defer b.Close()

	client := b.NewClient()
	ch := NewChannel(client, "room1", "alice", func() int64 { return 1000 })

	require.NoError(t, ch.Send(context.Background(), "  hello world  "))

	snap, err := client.ReadOnce(context.Background(), board.RoomMessagesPath("room1"))
	require.NoError(t, err)

	keys := snap.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, "  hello world  ", snap.Child(keys[0]).Child("text").Str())
}

func TestSubscribeDeliversTimestampOrder(t *testing.T) {
	b := board.NewMemoryBoard()
	defer b.Close()

	client := b.NewClient()

	// stamp messages out of order to force the sort to matter
	stamps := []int64{5, 1, 3}
	next := 0
	ch := NewChannel(client, "room1", "alice", func() int64 {
		ts := stamps[next]
		next++
		return ts
	})

	for _, text := range []string{"third", "first", "second"} {
		require.NoError(t, ch.Send(context.Background(), text))
	}

	deliveries := make(chan []Message, 8)
	unsub, err := ch.Subscribe(func(messages []Message) {
		deliveries <- messages
	})
	require.NoError(t, err)
	defer unsub()

	select {
	case messages := <-deliveries:
		require.Len(t, messages, 3)
		assert.Equal(t, []int64{1, 3, 5}, []int64{messages[0].Timestamp, messages[1].Timestamp, messages[2].Timestamp})
		assert.Equal(t, "first", messages[0].Text)
		assert.Equal(t, "second", messages[1].Text)
		assert.Equal(t, "third", messages[2].Text)
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivery")
	}
}

func TestSubscribeSeesPartnerMessages(t *testing.T) {
	b := board.NewMemoryBoard()
	defer b.Close()

	now := func() int64 { return time.Now().UnixMilli() }

	alice := NewChannel(b.NewClient(), "room1", "alice", now)
	bob := NewChannel(b.NewClient(), "room1", "bob", now)

	deliveries := make(chan []Message, 8)
	unsub, err := alice.Subscribe(func(messages []Message) {
		deliveries <- messages
	})
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, bob.Send(context.Background(), "hello"))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case messages := <-deliveries:
			if len(messages) == 0 {
				continue
			}
			assert.Equal(t, "hello", messages[0].Text)
			assert.Equal(t, "bob", messages[0].Sender)
			assert.NotEmpty(t, messages[0].ID)
			return
		case <-deadline:
			t.Fatal("partner message never delivered")
		}
	}
}

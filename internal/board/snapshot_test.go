package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshotAccessors(t *testing.T) {
	snap := Snapshot{Path: "chatRooms/room1", Value: map[string]any{
		"status":       "active",
		"createdAt":    int64(1700000000000),
		"lastActivity": float64(1700000000500),
		"users": map[string]any{
			"bob":   true,
			"alice": true,
		},
	}}

	assert.True(t, snap.Exists())
	assert.Equal(t, "active", snap.Child("status").Str())
	assert.Equal(t, int64(1700000000000), snap.Child("createdAt").Int64())
	assert.Equal(t, int64(1700000000500), snap.Child("lastActivity").Int64())
	assert.Equal(t, []string{"alice", "bob"}, snap.Child("users").Keys())
	assert.True(t, snap.Child("users").Child("alice").Bool())
	assert.False(t, snap.Child("users").Child("carol").Exists())
}

func TestSnapshotAbsent(t *testing.T) {
	var snap Snapshot

	assert.False(t, snap.Exists())
	assert.Empty(t, snap.Keys())
	assert.Equal(t, "", snap.Str())
	assert.Equal(t, int64(0), snap.Int64())
	assert.False(t, snap.Bool())
	assert.False(t, snap.Child("anything").Exists())
}

func TestPushIDsAreUniqueAndOrdered(t *testing.T) {
	prev := ""
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := newPushID()
		assert.Greater(t, id, prev)
		assert.False(t, seen[id])
		seen[id] = true
		prev = id
	}
}

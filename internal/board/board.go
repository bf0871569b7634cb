// Package board is the shared, eventually-consistent key-value store the chat
// protocol runs on: hierarchical paths, whole-subtree change subscriptions,
// and per-connection disconnect cleanup. Clients coordinate only through it;
// there is no central matchmaking process.
package board

import (
	"context"
	"strings"
)

// a single client's session-scoped handle onto the board. Writes and
// subscriptions made through a handle are independent of other handles;
// disconnect cleanups registered on it fire exactly once when the handle
// closes (transport loss or explicit Close).
type Client interface {
	// sets the value at path, replacing any existing subtree
	Write(ctx context.Context, path string, value any) error

	// removes the subtree at path; deleting an absent path is a no-op
	Delete(ctx context.Context, path string) error

	// returns the current whole-subtree snapshot at path
	ReadOnce(ctx context.Context, path string) (Snapshot, error)

	// appends a child under path with a store-assigned key that sorts in
	// insertion order, and returns that key
	Push(ctx context.Context, path string, value any) (string, error)

	// registers handler for the full current value at path, delivered once
	// immediately and again after every change under path, in mutation order.
	// The returned function cancels the subscription.
	Subscribe(path string, handler func(Snapshot)) (func(), error)

	// registers a delete of path to run when this client disconnects
	OnDisconnectDelete(path string)

	// registers a write of value at path to run when this client disconnects
	OnDisconnectSet(path string, value any)

	// cancels a previously registered disconnect action for path
	CancelDisconnect(path string)

	// runs registered disconnect cleanups, cancels all subscriptions made
	// through this handle, and invalidates it
	Close()
}

// a board hands out client handles; backends: memory (canonical, in-process)
// and redis
type Board interface {
	NewClient() Client
	Close() error
}

// splits a path into its non-empty segments
func splitPath(path string) []string {
	parts := strings.Split(path, "/")
	segments := parts[:0]

	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}

	return segments
}

// reports whether path a contains or equals path b (segment-wise prefix)
func pathContains(a, b []string) bool {
	if len(a) > len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

// reports whether a mutation at mutated affects the subtree rooted at sub
func pathsOverlap(sub, mutated []string) bool {
	return pathContains(sub, mutated) || pathContains(mutated, sub)
}

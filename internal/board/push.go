package board

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

var (
	pushMu     sync.Mutex
	lastPushMs int64
	pushSeq    int
)

// generates a store-assigned child key that sorts lexicographically in
// insertion order: millisecond timestamp, a same-millisecond sequence number,
// and a random suffix so keys from different processes cannot collide
func newPushID() string {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		// fall back to the sequence alone; ordering still holds
		suffix = []byte{0, 0, 0, 0}
	}

	pushMu.Lock()

	now := time.Now().UnixMilli()
	if now <= lastPushMs {
		pushSeq++
		now = lastPushMs
	} else {
		lastPushMs = now
		pushSeq = 0
	}
	seq := pushSeq

	pushMu.Unlock()

	return fmt.Sprintf("%012x%04x%s", now, seq, hex.EncodeToString(suffix))
}

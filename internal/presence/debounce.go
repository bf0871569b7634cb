package presence

import (
	"sync"
	"time"
)

// turns a stream of keystrokes into a debounced typing signal: set on the
// first keystroke after idle, cleared after a quiet window or immediately on
// send. Owns its timer outright and cancels-and-reschedules it on every
// keystroke.
type TypingDebouncer struct {
	idle   time.Duration
	signal func(typing bool)

	mu     sync.Mutex
	timer  *time.Timer
	typing bool
}

// creates a debouncer that drives signal; idle is the quiet window after
// which typing clears
func NewTypingDebouncer(idle time.Duration, signal func(typing bool)) *TypingDebouncer {
	return &TypingDebouncer{idle: idle, signal: signal}
}

// records a keystroke, raising the signal on the first one and pushing the
// clear timer back on every one
func (d *TypingDebouncer) Keystroke() {
	d.mu.Lock()

	raise := !d.typing
	d.typing = true

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.idle, d.expire)

	d.mu.Unlock()

	if raise {
		d.signal(true)
	}
}

// clears the signal immediately, for message send
func (d *TypingDebouncer) Sent() {
	d.clear()
}

// cancels the pending timer and clears the signal if raised
func (d *TypingDebouncer) Stop() {
	d.clear()
}

func (d *TypingDebouncer) expire() {
	d.clear()
}

func (d *TypingDebouncer) clear() {
	d.mu.Lock()

	lower := d.typing
	d.typing = false

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	d.mu.Unlock()

	if lower {
		d.signal(false)
	}
}

package frame

import (
	"sync"
	"time"
)

// DefaultSourceInterval paces sources at roughly 3 fps.
const DefaultSourceInterval = 333 * time.Millisecond

// Throttle passes at most one frame per interval to the next publisher.
type Throttle struct {
	next     Publisher
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewThrottle wraps next. A non-positive interval disables throttling.
func NewThrottle(next Publisher, interval time.Duration) *Throttle {
	return &Throttle{next: next, interval: interval, now: time.Now}
}

// Allow reports whether a frame arriving now may pass, and records it if so.
func (t *Throttle) Allow() bool {
	if t.interval <= 0 {
		return true
	}
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}

// Publish forwards f when the interval has elapsed and drops it otherwise.
func (t *Throttle) Publish(f *Frame) {
	if t.Allow() {
		t.next.Publish(f)
	}
}

// Forward publishes f without consulting the gate. Sources that call Allow
// before encoding use it to hand over the frame they were allowed.
func (t *Throttle) Forward(f *Frame) {
	t.next.Publish(f)
}

var _ Publisher = (*Throttle)(nil)

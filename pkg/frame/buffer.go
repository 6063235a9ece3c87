package frame

import (
	"context"
	"sync"
	"time"
)

// Buffer is a single-slot mailbox for one lane.
//
// TrySend overwrites the pending frame; Receive blocks until a frame is
// available and takes it. Only one goroutine should call Receive.
type Buffer struct {
	name string

	mu      sync.Mutex
	pending *Frame
	closed  bool

	// ready has capacity 1 and carries at most one wake-up token.
	ready chan struct{}
	done  chan struct{}

	lastConsumedAt   time.Time
	lastConsumedSeq  uint64
	consecutiveDrops uint64
	totalDrops       uint64
	totalConsumed    uint64
}

// BufferStats is a snapshot of a buffer's counters.
type BufferStats struct {
	Lane             string    `json:"lane"`
	LastConsumedAt   time.Time `json:"last_consumed_at"`
	LastConsumedSeq  uint64    `json:"last_consumed_seq"`
	ConsecutiveDrops uint64    `json:"consecutive_drops"`
	TotalDrops       uint64    `json:"total_drops"`
	TotalConsumed    uint64    `json:"total_consumed"`
	Closed           bool      `json:"closed"`
}

// NewBuffer creates an empty buffer for the named lane.
func NewBuffer(name string) *Buffer {
	return &Buffer{
		name:  name,
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Name returns the lane name.
func (b *Buffer) Name() string {
	return b.name
}

// TrySend stores f, replacing any unconsumed frame. It never blocks.
// It reports whether an unconsumed frame was overwritten.
func (b *Buffer) TrySend(f *Frame) (dropped bool) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return false
	}
	if b.pending != nil {
		dropped = true
		b.consecutiveDrops++
		b.totalDrops++
	}
	b.pending = f
	b.mu.Unlock()

	select {
	case b.ready <- struct{}{}:
	default:
	}
	return dropped
}

// Receive waits for the next frame. It returns false when the buffer is
// closed or ctx is done; a pending frame is discarded on close.
func (b *Buffer) Receive(ctx context.Context) (*Frame, bool) {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return nil, false
		}
		if f := b.pending; f != nil {
			b.pending = nil
			b.lastConsumedAt = time.Now()
			b.lastConsumedSeq = f.Seq
			b.consecutiveDrops = 0
			b.totalConsumed++
			b.mu.Unlock()
			return f, true
		}
		b.mu.Unlock()

		select {
		case <-b.ready:
		case <-b.done:
			return nil, false
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Close wakes any blocked receiver and makes all future receives fail.
// It is safe to call more than once.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.pending = nil
	close(b.done)
}

// Stats returns a snapshot of the buffer counters.
func (b *Buffer) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{
		Lane:             b.name,
		LastConsumedAt:   b.lastConsumedAt,
		LastConsumedSeq:  b.lastConsumedSeq,
		ConsecutiveDrops: b.consecutiveDrops,
		TotalDrops:       b.totalDrops,
		TotalConsumed:    b.totalConsumed,
		Closed:           b.closed,
	}
}

package frame

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_LatestWins(t *testing.T) {
	b := NewBuffer("detection")

	for i := 1; i <= 5; i++ {
		b.TrySend(&Frame{Seq: uint64(i)})
	}

	f, ok := b.Receive(context.Background())
	require.True(t, ok)
	assert.Equal(t, uint64(5), f.Seq)

	stats := b.Stats()
	assert.Equal(t, uint64(4), stats.TotalDrops)
	assert.Equal(t, uint64(1), stats.TotalConsumed)
	assert.Equal(t, uint64(0), stats.ConsecutiveDrops)

	// Nothing left after the single consume.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, ok = b.Receive(ctx)
	assert.False(t, ok)
}

func TestBuffer_ReceiveBlocksUntilSend(t *testing.T) {
	b := NewBuffer("text")
	got := make(chan uint64, 1)

	go func() {
		f, ok := b.Receive(context.Background())
		if ok {
			got <- f.Seq
		}
	}()

	time.Sleep(10 * time.Millisecond)
	b.TrySend(&Frame{Seq: 42})

	select {
	case seq := <-got:
		assert.Equal(t, uint64(42), seq)
	case <-time.After(time.Second):
		t.Fatal("receiver was not woken")
	}
}

func TestBuffer_CloseWakesReceiver(t *testing.T) {
	b := NewBuffer("depth")
	done := make(chan bool, 1)

	go func() {
		_, ok := b.Receive(context.Background())
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	b.Close()
	b.Close() // idempotent

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("close did not wake receiver")
	}

	assert.False(t, b.TrySend(&Frame{}), "send after close is ignored")
	_, ok := b.Receive(context.Background())
	assert.False(t, ok)
}

func TestBuffer_CloseDiscardsPending(t *testing.T) {
	b := NewBuffer("depth")
	b.TrySend(&Frame{Seq: 1})
	b.Close()

	_, ok := b.Receive(context.Background())
	assert.False(t, ok)
}

func TestDistributor_FansOutToEveryLane(t *testing.T) {
	d := NewDistributor("detection", "text", "depth")
	var mu sync.Mutex
	drops := map[string]int{}
	d.OnDrop(func(lane string) {
		mu.Lock()
		drops[lane]++
		mu.Unlock()
	})

	d.Publish(&Frame{})
	d.Publish(&Frame{})
	assert.Equal(t, uint64(2), d.Published())

	for _, lane := range []string{"detection", "text", "depth"} {
		f, ok := d.Lane(lane).Receive(context.Background())
		require.True(t, ok, lane)
		assert.Equal(t, uint64(2), f.Seq, lane)
		assert.Equal(t, 1, drops[lane], lane)
	}
}

func TestDistributor_SameFrameShared(t *testing.T) {
	d := NewDistributor("a", "b")
	f := &Frame{Data: []byte{1, 2, 3}}
	d.Publish(f)

	fa, _ := d.Lane("a").Receive(context.Background())
	fb, _ := d.Lane("b").Receive(context.Background())
	assert.Same(t, fa, fb)
}

func TestDistributor_PublishAfterCloseIsNoop(t *testing.T) {
	d := NewDistributor("a")
	d.Close()
	d.Close()

	assert.NotPanics(t, func() { d.Publish(&Frame{}) })
	assert.Equal(t, uint64(0), d.Published())
	assert.True(t, d.Closed())
	assert.True(t, d.Lane("a").Stats().Closed)
}

func TestDistributor_PublishNeverBlocks(t *testing.T) {
	d := NewDistributor("slow")
	done := make(chan struct{})

	go func() {
		for i := 0; i < 10000; i++ {
			d.Publish(&Frame{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked without a consumer")
	}
}

type recordingPublisher struct {
	frames []*Frame
}

func (r *recordingPublisher) Publish(f *Frame) { r.frames = append(r.frames, f) }

func TestThrottle(t *testing.T) {
	rec := &recordingPublisher{}
	th := NewThrottle(rec, 300*time.Millisecond)
	now := time.Unix(1000, 0)
	th.now = func() time.Time { return now }

	th.Publish(&Frame{})
	now = now.Add(100 * time.Millisecond)
	th.Publish(&Frame{})
	now = now.Add(200 * time.Millisecond)
	th.Publish(&Frame{})

	assert.Len(t, rec.frames, 2)

	th.Forward(&Frame{})
	assert.Len(t, rec.frames, 3, "forward bypasses the gate")
}

func TestNormalizeRotation(t *testing.T) {
	tests := map[int]int{0: 0, 90: 90, 180: 180, 270: 270, 360: 0, -90: 270, 85: 90, 450: 90}
	for in, want := range tests {
		assert.Equal(t, want, normalizeRotation(in), "rotation %d", in)
	}
}

package announce

import (
	"container/heap"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-sightline/internal/log"
)

type fakeSpeaker struct {
	mu     sync.Mutex
	spoken []string
	ids    []string
	stops  int
	fail   map[string]error
	done   func(string, error)
}

func (f *fakeSpeaker) Speak(text, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spoken = append(f.spoken, text)
	f.ids = append(f.ids, id)
	return f.fail[text]
}

func (f *fakeSpeaker) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeSpeaker) OnDone(fn func(string, error)) { f.done = fn }

// finishLast completes the most recent utterance.
func (f *fakeSpeaker) finishLast() {
	f.mu.Lock()
	id := f.ids[len(f.ids)-1]
	f.mu.Unlock()
	f.done(id, nil)
}

func (f *fakeSpeaker) idOf(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ids[i]
}

func (f *fakeSpeaker) Spoken() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.spoken...)
}

func (f *fakeSpeaker) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newScheduler(t *testing.T, opts ...Option) (*Scheduler, *fakeSpeaker, *clock) {
	t.Helper()
	sp := &fakeSpeaker{}
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	opts = append([]Option{WithClock(clk.Now), WithLogger(log.Discard()), WithPruneInterval(0)}, opts...)
	s := NewScheduler(sp, opts...)
	t.Cleanup(s.Close)
	return s, sp, clk
}

// settle round-trips through the inbox so earlier Done calls are handled.
func settle(s *Scheduler) { s.Stats() }

func TestAnnounce_BlankIsNoop(t *testing.T) {
	s, sp, _ := newScheduler(t)
	assert.False(t, s.Announce("", Normal, false))
	assert.False(t, s.Announce("   \t", Immediate, true))
	assert.Empty(t, sp.Spoken())
	assert.False(t, s.IsSpeaking())
}

func TestAnnounce_Debounce(t *testing.T) {
	s, sp, clk := newScheduler(t)

	require.True(t, s.Announce("busy", Normal, false))
	require.True(t, s.Announce("x", Normal, false))
	assert.Equal(t, 1, s.QueueLen())

	clk.Advance(2999 * time.Millisecond)
	assert.False(t, s.Announce("x", Normal, false), "inside the window")
	assert.Equal(t, 1, s.QueueLen())

	clk.Advance(time.Millisecond)
	assert.True(t, s.Announce("x", Normal, false), "window elapsed")
	assert.Equal(t, 2, s.QueueLen())

	assert.True(t, s.Announce("x", Normal, true), "bypass ignores the cache")
	assert.Equal(t, 3, s.QueueLen())
	assert.Equal(t, []string{"busy"}, sp.Spoken())
}

func TestQueueOrdering(t *testing.T) {
	s, sp, clk := newScheduler(t)

	require.True(t, s.Announce("first", Normal, false))
	for _, a := range []struct {
		text string
		p    Priority
	}{
		{"low", Low},
		{"normal-1", Normal},
		{"high", High},
		{"normal-2", Normal},
	} {
		clk.Advance(10 * time.Millisecond)
		require.True(t, s.Announce(a.text, a.p, false))
	}
	assert.Equal(t, 4, s.QueueLen())

	for i := 0; i < 4; i++ {
		sp.finishLast()
		settle(s)
	}
	assert.Equal(t, []string{"first", "high", "normal-1", "normal-2", "low"}, sp.Spoken())
	assert.Equal(t, 0, s.QueueLen())
	assert.True(t, s.IsSpeaking())

	sp.finishLast()
	settle(s)
	assert.False(t, s.IsSpeaking())
}

func TestImmediatePreempts(t *testing.T) {
	s, sp, _ := newScheduler(t)

	require.True(t, s.Announce("describing scene", Normal, false))
	require.True(t, s.Announce("queued one", Normal, false))
	require.True(t, s.Announce("queued two", High, false))
	require.Equal(t, 2, s.QueueLen())

	require.True(t, s.Announce("Obstacle very close directly ahead", Immediate, false))
	assert.Equal(t, 1, sp.Stops())
	assert.Equal(t, 0, s.QueueLen())
	assert.Equal(t, "Obstacle very close directly ahead", sp.Spoken()[1])

	// The interrupted utterance reports late; it must not end the alert.
	s.Done(sp.idOf(0), errors.New("interrupted"))
	settle(s)
	assert.True(t, s.IsSpeaking())

	sp.finishLast()
	settle(s)
	assert.False(t, s.IsSpeaking())
	assert.Len(t, sp.Spoken(), 2, "preempted announcements are never requeued")
}

func TestClearQueueLetsCurrentFinish(t *testing.T) {
	s, sp, _ := newScheduler(t)
	require.True(t, s.Announce("a", Normal, false))
	require.True(t, s.Announce("b", Normal, false))

	s.ClearQueue()
	assert.Equal(t, 0, s.QueueLen())
	assert.True(t, s.IsSpeaking())
	assert.Equal(t, 0, sp.Stops())

	sp.finishLast()
	settle(s)
	assert.Equal(t, []string{"a"}, sp.Spoken())
}

func TestStopHaltsAndClears(t *testing.T) {
	s, sp, _ := newScheduler(t)
	require.True(t, s.Announce("a", Normal, false))
	require.True(t, s.Announce("b", Low, false))

	s.Stop()
	assert.False(t, s.IsSpeaking())
	assert.Equal(t, 0, s.QueueLen())
	assert.Equal(t, 1, sp.Stops())

	require.True(t, s.Announce("c", Normal, false))
	assert.Equal(t, []string{"a", "c"}, sp.Spoken())
}

func TestSpeakErrorMovesOn(t *testing.T) {
	s, sp, _ := newScheduler(t)
	sp.fail = map[string]error{"broken": errors.New("device busy")}

	require.True(t, s.Announce("broken", Normal, false))
	assert.False(t, s.IsSpeaking())

	require.True(t, s.Announce("working", Normal, false))
	assert.True(t, s.IsSpeaking())
	assert.Equal(t, []string{"broken", "working"}, sp.Spoken())
}

func TestSynchronousDoneFromSpeak(t *testing.T) {
	sp := &instantSpeaker{}
	s := NewScheduler(sp, WithLogger(log.Discard()), WithPruneInterval(0))
	t.Cleanup(s.Close)

	for _, text := range []string{"one", "two", "three"} {
		require.True(t, s.Announce(text, Normal, false))
	}
	assert.Eventually(t, func() bool { return !s.IsSpeaking() && s.QueueLen() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, sp.count())
}

// instantSpeaker reports completion before Speak returns.
type instantSpeaker struct {
	mu   sync.Mutex
	n    int
	done func(string, error)
}

func (i *instantSpeaker) Speak(_, id string) error {
	i.mu.Lock()
	i.n++
	i.mu.Unlock()
	i.done(id, nil)
	return nil
}
func (i *instantSpeaker) Stop() error                   { return nil }
func (i *instantSpeaker) OnDone(fn func(string, error)) { i.done = fn }
func (i *instantSpeaker) count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.n
}

func TestPrune(t *testing.T) {
	s, _, clk := newScheduler(t)
	require.True(t, s.Announce("a", Normal, false))
	clk.Advance(4 * time.Second)
	require.True(t, s.Announce("b", Normal, false))
	assert.Equal(t, 2, s.Stats().CacheSize)

	clk.Advance(3 * time.Second)
	assert.Equal(t, 1, s.Prune(), "only a is older than twice the window")
	assert.Equal(t, 1, s.Stats().CacheSize)
}

func TestClose(t *testing.T) {
	sp := &fakeSpeaker{}
	s := NewScheduler(sp, WithLogger(log.Discard()))
	require.True(t, s.Announce("a", Normal, false))

	s.Close()
	s.Close()
	assert.Equal(t, 1, sp.Stops(), "close stops current speech")
	assert.False(t, s.Announce("b", Normal, false))
	assert.NotPanics(t, func() { s.Done("x", nil) })
}

func TestListener(t *testing.T) {
	var got []Announcement
	s, _, _ := newScheduler(t, WithListener(func(a Announcement) { got = append(got, a) }))
	require.True(t, s.Announce("hello", High, false))
	settle(s)
	require.Len(t, got, 1)
	assert.Equal(t, High, got[0].Priority)
	assert.NotEmpty(t, got[0].ID)
}

func TestHeapTieBreaks(t *testing.T) {
	t0 := time.Unix(0, 0)
	q := &queue{}
	heap.Push(q, entry{a: Announcement{Text: "b", Priority: Normal, CreatedAt: t0}, seq: 2})
	heap.Push(q, entry{a: Announcement{Text: "a", Priority: Normal, CreatedAt: t0}, seq: 1})
	heap.Push(q, entry{a: Announcement{Text: "late", Priority: Normal, CreatedAt: t0.Add(time.Second)}, seq: 0})

	var order []string
	for q.Len() > 0 {
		order = append(order, heap.Pop(q).(entry).a.Text)
	}
	assert.Equal(t, []string{"a", "b", "late"}, order)
}

func TestParsePriority(t *testing.T) {
	p, ok := ParsePriority("high")
	assert.True(t, ok)
	assert.Equal(t, High, p)
	_, ok = ParsePriority("urgent")
	assert.False(t, ok)
}

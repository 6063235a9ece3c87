package announce

import (
	"container/heap"
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-sightline/internal/log"
	"github.com/teslashibe/go-sightline/internal/observe"
)

const (
	// DefaultDebounce is how long an identical text stays suppressed.
	DefaultDebounce = 3 * time.Second

	// DefaultPruneInterval is how often stale debounce entries are dropped.
	DefaultPruneInterval = 10 * time.Second

	inboxSize = 64
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDebounce sets the debounce window.
func WithDebounce(d time.Duration) Option {
	return func(s *Scheduler) { s.window = d }
}

// WithPruneInterval sets the cache maintenance period. Zero disables the
// ticker; Prune can still be called directly.
func WithPruneInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.pruneEvery = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics counts announcement outcomes on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithListener sets a callback invoked on the scheduler goroutine each time
// an announcement starts speaking. It must not call back into the Scheduler.
func WithListener(fn func(Announcement)) Option {
	return func(s *Scheduler) { s.onSpeak = fn }
}

// Messages handled by the actor.
type (
	announceMsg struct {
		text   string
		prio   Priority
		bypass bool
		reply  chan bool
	}
	doneMsg struct {
		id  string
		err error
	}
	stopMsg  struct{ reply chan struct{} }
	clearMsg struct{ reply chan struct{} }
	pruneMsg struct{ reply chan int }
	statsMsg struct{ reply chan Stats }
)

// Stats is a point-in-time view of the scheduler.
type Stats struct {
	Speaking  bool          `json:"speaking"`
	Current   *Announcement `json:"current,omitempty"`
	Queued    int           `json:"queued"`
	CacheSize int           `json:"cache_size"`
}

// Scheduler serialises announcements onto a Speaker.
type Scheduler struct {
	speaker    Speaker
	window     time.Duration
	pruneEvery time.Duration
	now        func() time.Time
	logger     *slog.Logger
	metrics    *observe.Metrics
	onSpeak    func(Announcement)

	inbox     chan any
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	speaking atomic.Bool
	queued   atomic.Int64

	// Owned by run.
	queue   queue
	seq     uint64
	cache   map[string]time.Time
	current *Announcement
}

// NewScheduler starts a scheduler speaking through sp. Call Close to stop it.
func NewScheduler(sp Speaker, opts ...Option) *Scheduler {
	s := &Scheduler{
		speaker:    sp,
		window:     DefaultDebounce,
		pruneEvery: DefaultPruneInterval,
		now:        time.Now,
		logger:     log.Component("announce"),
		inbox:      make(chan any, inboxSize),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		cache:      make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	sp.OnDone(s.Done)
	go s.run()
	return s
}

// Announce submits text. It returns false when the text is blank, was
// spoken within the debounce window (unless bypassDebounce), or the
// scheduler is closed.
func (s *Scheduler) Announce(text string, p Priority, bypassDebounce bool) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	reply := make(chan bool, 1)
	if !s.send(announceMsg{text: text, prio: p, bypass: bypassDebounce, reply: reply}) {
		return false
	}
	select {
	case ok := <-reply:
		return ok
	case <-s.done:
		return false
	}
}

// Done reports that utteranceID finished. Speakers may call it from any
// goroutine, including from inside Speak. Ids that are not the current
// utterance are ignored.
func (s *Scheduler) Done(utteranceID string, err error) {
	msg := doneMsg{id: utteranceID, err: err}
	select {
	case s.inbox <- msg:
	case <-s.done:
	default:
		// Inbox full: never block the speaker.
		go s.send(msg)
	}
}

// Stop interrupts current speech and discards everything queued.
func (s *Scheduler) Stop() {
	reply := make(chan struct{})
	if s.send(stopMsg{reply: reply}) {
		s.wait(reply)
	}
}

// ClearQueue discards queued announcements and lets current speech finish.
func (s *Scheduler) ClearQueue() {
	reply := make(chan struct{})
	if s.send(clearMsg{reply: reply}) {
		s.wait(reply)
	}
}

// Prune drops debounce entries older than twice the window and returns how
// many were removed.
func (s *Scheduler) Prune() int {
	reply := make(chan int, 1)
	if !s.send(pruneMsg{reply: reply}) {
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-s.done:
		return 0
	}
}

// Stats returns a snapshot of the scheduler state.
func (s *Scheduler) Stats() Stats {
	reply := make(chan Stats, 1)
	if !s.send(statsMsg{reply: reply}) {
		return Stats{}
	}
	select {
	case st := <-reply:
		return st
	case <-s.done:
		return Stats{}
	}
}

// IsSpeaking reports whether an utterance is in progress.
func (s *Scheduler) IsSpeaking() bool {
	return s.speaking.Load()
}

// QueueLen returns the number of queued announcements.
func (s *Scheduler) QueueLen() int {
	return int(s.queued.Load())
}

// Close stops speech and the scheduler goroutine. Safe to call more than once.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
	<-s.done
}

func (s *Scheduler) send(msg any) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.inbox <- msg:
		return true
	case <-s.done:
		return false
	}
}

func (s *Scheduler) wait(reply <-chan struct{}) {
	select {
	case <-reply:
	case <-s.done:
	}
}

func (s *Scheduler) run() {
	defer close(s.done)

	var tick <-chan time.Time
	if s.pruneEvery > 0 {
		t := time.NewTicker(s.pruneEvery)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case msg := <-s.inbox:
			s.handle(msg)
		case <-tick:
			if n := s.prune(); n > 0 {
				s.logger.Debug("pruned debounce cache", "removed", n, "remaining", len(s.cache))
			}
		case <-s.quit:
			if s.current != nil {
				s.interrupt()
			}
			s.queue = nil
			s.queued.Store(0)
			return
		}
	}
}

func (s *Scheduler) handle(msg any) {
	switch m := msg.(type) {
	case announceMsg:
		m.reply <- s.announce(m.text, m.prio, m.bypass)
	case doneMsg:
		s.finish(m.id, m.err)
	case stopMsg:
		s.interrupt()
		s.queue = s.queue[:0]
		s.queued.Store(0)
		close(m.reply)
	case clearMsg:
		s.queue = s.queue[:0]
		s.queued.Store(0)
		close(m.reply)
	case pruneMsg:
		m.reply <- s.prune()
	case statsMsg:
		st := Stats{Speaking: s.current != nil, Queued: s.queue.Len(), CacheSize: len(s.cache)}
		if s.current != nil {
			cur := *s.current
			st.Current = &cur
		}
		m.reply <- st
	}
}

func (s *Scheduler) announce(text string, p Priority, bypass bool) bool {
	now := s.now()
	if !bypass {
		if last, ok := s.cache[text]; ok && now.Sub(last) < s.window {
			s.record(p, "debounced")
			return false
		}
		s.cache[text] = now
	}

	a := Announcement{ID: uuid.NewString(), Text: text, Priority: p, CreatedAt: now}
	if p >= Immediate {
		s.interrupt()
		if dropped := s.queue.Len(); dropped > 0 {
			s.logger.Debug("preempted queue", "dropped", dropped)
		}
		s.queue = s.queue[:0]
		s.record(p, "preempted")
		s.speak(a)
		s.drain()
		return true
	}

	s.seq++
	heap.Push(&s.queue, entry{a: a, seq: s.seq})
	s.record(p, "queued")
	s.drain()
	return true
}

// drain speaks queued announcements until one is in flight or the queue is
// empty. A Speak that fails synchronously counts as completed.
func (s *Scheduler) drain() {
	for s.current == nil && s.queue.Len() > 0 {
		e := heap.Pop(&s.queue).(entry)
		s.speak(e.a)
	}
	s.queued.Store(int64(s.queue.Len()))
}

func (s *Scheduler) speak(a Announcement) {
	s.current = &a
	s.speaking.Store(true)
	if s.onSpeak != nil {
		s.onSpeak(a)
	}
	if err := s.speaker.Speak(a.Text, a.ID); err != nil {
		s.logger.Warn("speak failed", "id", a.ID, "error", err)
		s.current = nil
		s.speaking.Store(false)
	}
}

func (s *Scheduler) finish(id string, err error) {
	if s.current == nil || s.current.ID != id {
		return
	}
	if err != nil {
		s.logger.Debug("utterance ended with error", "id", id, "error", err)
	}
	s.current = nil
	s.speaking.Store(false)
	s.drain()
}

// interrupt stops the speaker and forgets the current utterance. Its late
// completion is ignored by finish.
func (s *Scheduler) interrupt() {
	s.current = nil
	s.speaking.Store(false)
	if err := s.speaker.Stop(); err != nil {
		s.logger.Warn("speaker stop failed", "error", err)
	}
}

func (s *Scheduler) prune() int {
	cutoff := s.now().Add(-2 * s.window)
	n := 0
	for text, at := range s.cache {
		if at.Before(cutoff) {
			delete(s.cache, text)
			n++
		}
	}
	return n
}

func (s *Scheduler) record(p Priority, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordAnnouncement(context.Background(), p.String(), outcome)
	}
}

// Package pipeline drives the detection, text and depth lanes over a shared
// frame stream.
//
// Every lane reads from its own latest-wins buffer on its own goroutine, so a
// slow or broken engine only costs its own lane. Engines load concurrently
// before any lane starts; a load failure marks that lane failed and leaves
// the others alone. Detection and text retry on the next frame after a
// failure. Depth runs at most once per DepthInterval and turns itself off the
// first time its engine fails.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-sightline/internal/log"
	"github.com/teslashibe/go-sightline/internal/observe"
	"github.com/teslashibe/go-sightline/pkg/depth"
	"github.com/teslashibe/go-sightline/pkg/engine"
	"github.com/teslashibe/go-sightline/pkg/frame"
	"github.com/teslashibe/go-sightline/pkg/perception"
	"github.com/teslashibe/go-sightline/pkg/prefs"
)

// Engines assigns an engine to each lane. A nil engine leaves that lane
// failed with ErrNoEngine.
type Engines struct {
	Detection engine.Engine
	Text      engine.Engine
	Depth     engine.Engine
}

func (e Engines) forLane(l Lane) engine.Engine {
	switch l {
	case LaneDetection:
		return e.Detection
	case LaneText:
		return e.Text
	case LaneDepth:
		return e.Depth
	}
	return nil
}

type laneInfo struct {
	state State
	err   error
}

// Orchestrator owns the lanes and their engines.
type Orchestrator struct {
	cfg     Config
	engines Engines
	dist    *frame.Distributor
	prefs   prefs.Source
	metrics *observe.Metrics
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	ready   chan struct{}
	wg      sync.WaitGroup

	stateMu sync.RWMutex
	lanes   map[Lane]laneInfo

	detections atomic.Pointer[Snapshot[engine.DetectionList]]
	text       atomic.Pointer[Snapshot[engine.RecognizedText]]
	depthMap   atomic.Pointer[Snapshot[engine.DepthMap]]

	listeners listeners
}

// Snapshot is the latest result of one lane.
type Snapshot[T any] struct {
	Result T         `json:"result"`
	Seq    uint64    `json:"seq"`
	At     time.Time `json:"at"`
}

// New creates an orchestrator. Nothing runs until Start.
func New(cfg Config, engines Engines, opts ...Option) *Orchestrator {
	if cfg.DepthInterval < 0 {
		cfg.DepthInterval = 0
	}
	o := &Orchestrator{
		cfg:     cfg,
		engines: engines,
		dist:    frame.NewDistributor(string(LaneDetection), string(LaneText), string(LaneDepth)),
		prefs:   prefs.Static(prefs.Default()),
		logger:  log.Component("pipeline"),
		now:     time.Now,
		ready:   make(chan struct{}),
		lanes:   make(map[Lane]laneInfo, len(Lanes)),
	}
	for _, opt := range opts {
		opt(o)
	}
	for _, l := range Lanes {
		o.lanes[l] = laneInfo{state: StateIdle}
	}
	if o.metrics != nil {
		m := o.metrics
		o.dist.OnDrop(func(lane string) { m.RecordDrop(context.Background(), lane) })
	}
	return o
}

// Start loads the engines and starts the lanes in the background. It returns
// immediately; Ready is closed once loading has finished. Calling Start again
// has no effect.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return ErrStopped
	}
	if o.started {
		return nil
	}
	o.started = true

	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.wg.Add(1)
	go o.boot(runCtx)
	return nil
}

// Ready is closed when model loading has completed, whatever its outcome.
func (o *Orchestrator) Ready() <-chan struct{} {
	return o.ready
}

func (o *Orchestrator) boot(ctx context.Context) {
	defer o.wg.Done()
	defer close(o.ready)

	var (
		mu     sync.Mutex
		loaded []Lane
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, lane := range Lanes {
		eng := o.engines.forLane(lane)
		if eng == nil {
			o.setState(lane, StateFailed, ErrNoEngine)
			continue
		}
		o.setState(lane, StateLoading, nil)
		g.Go(func() error {
			start := o.now()
			if err := eng.Load(gctx); err != nil {
				o.logger.Error("engine load failed", "lane", lane, "engine", eng.Name(), "error", err)
				o.setState(lane, StateFailed, err)
				// Swallowed so the other loads are not cancelled.
				return nil
			}
			o.logger.Info("engine loaded", "lane", lane, "engine", eng.Name(), "took", o.now().Sub(start))
			mu.Lock()
			loaded = append(loaded, lane)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return
	}
	for _, lane := range loaded {
		o.wg.Add(1)
		go o.runLane(ctx, lane, o.engines.forLane(lane))
	}
}

func (o *Orchestrator) runLane(ctx context.Context, lane Lane, eng engine.Engine) {
	defer o.wg.Done()

	logger := o.logger.With("lane", lane, "engine", eng.Name())
	buf := o.dist.Lane(string(lane))
	o.setState(lane, StateRunning, nil)
	if o.metrics != nil {
		o.metrics.LaneActive(ctx, 1)
		defer o.metrics.LaneActive(context.Background(), -1)
	}

	var last time.Time
	for {
		f, ok := buf.Receive(ctx)
		if !ok {
			o.setState(lane, StateStopped, nil)
			return
		}

		if lane == LaneDepth {
			now := o.now()
			if !last.IsZero() && now.Sub(last) < o.cfg.DepthInterval {
				continue
			}
			last = now
		}

		res, err := o.runOnce(ctx, lane, eng, f)
		if err != nil {
			if ctx.Err() != nil {
				o.setState(lane, StateStopped, nil)
				return
			}
			if lane == LaneDepth {
				logger.Warn("depth disabled for this session", "error", err, "seq", f.Seq)
				o.setState(lane, StateDisabled, err)
				return
			}
			logger.Debug("frame dropped after inference error", "error", err, "seq", f.Seq)
			continue
		}
		o.store(lane, res, f.Seq)
	}
}

// runOnce runs one inference, converting panics into errors.
func (o *Orchestrator) runOnce(ctx context.Context, lane Lane, eng engine.Engine, f *frame.Frame) (res engine.Result, err error) {
	start := o.now()
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%w: %v", ErrPanic, r)
		}
		if o.metrics != nil {
			o.metrics.RecordInference(ctx, string(lane), o.now().Sub(start).Seconds(), err)
		}
	}()

	res, err = eng.Run(ctx, f)
	if err == nil && (res == nil || res.Kind() != lane.Kind()) {
		err = ErrUnexpectedResult
	}
	return res, err
}

func (o *Orchestrator) store(lane Lane, res engine.Result, seq uint64) {
	at := o.now()
	switch r := res.(type) {
	case engine.DetectionList:
		threshold := o.prefs.Current().ConfidenceThreshold
		r.Items = perception.FilterConfidence(perception.FilterValid(r.Items), threshold)
		res = r
		o.detections.Store(&Snapshot[engine.DetectionList]{Result: r, Seq: seq, At: at})
	case engine.RecognizedText:
		o.text.Store(&Snapshot[engine.RecognizedText]{Result: r, Seq: seq, At: at})
	case engine.DepthMap:
		o.depthMap.Store(&Snapshot[engine.DepthMap]{Result: r, Seq: seq, At: at})
	}
	o.listeners.emit(Event{Type: EventResult, Lane: lane, Result: res, Seq: seq, At: at})
}

// Publish hands a frame to every lane. It never blocks and is a no-op after
// Stop.
func (o *Orchestrator) Publish(f *frame.Frame) {
	if f == nil || o.dist.Closed() {
		return
	}
	o.dist.Publish(f)
	if o.metrics != nil {
		o.metrics.RecordPublish(context.Background())
	}
}

// Stop closes the lanes, waits for them and releases every engine. It is
// safe to call before Start, after a partial start, or more than once.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return nil
	}
	o.stopped = true
	cancel := o.cancel
	o.mu.Unlock()

	o.dist.Close()
	if cancel != nil {
		cancel()
	}
	o.wg.Wait()

	var errs []error
	for _, lane := range Lanes {
		eng := o.engines.forLane(lane)
		if eng == nil {
			continue
		}
		if err := eng.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", lane, err))
		}
		if !o.State(lane).Unavailable() {
			o.setState(lane, StateStopped, nil)
		}
	}
	o.logger.Info("pipeline stopped", "published", o.dist.Published())
	return errors.Join(errs...)
}

// State returns the lane's current state.
func (o *Orchestrator) State(lane Lane) State {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.lanes[lane].state
}

func (o *Orchestrator) setState(lane Lane, s State, err error) {
	o.stateMu.Lock()
	prev := o.lanes[lane]
	if prev.state == s {
		o.stateMu.Unlock()
		return
	}
	o.lanes[lane] = laneInfo{state: s, err: err}
	o.stateMu.Unlock()

	o.listeners.emit(Event{Type: EventState, Lane: lane, State: s, Err: err, At: o.now()})
}

// Detections returns the latest detection result, if any.
func (o *Orchestrator) Detections() (Snapshot[engine.DetectionList], bool) {
	return load(&o.detections)
}

// Text returns the latest recognised text, if any.
func (o *Orchestrator) Text() (Snapshot[engine.RecognizedText], bool) {
	return load(&o.text)
}

// Depth returns the latest depth surface or nil.
func (o *Orchestrator) Depth() *depth.Surface {
	if s := o.depthMap.Load(); s != nil {
		return s.Result.Surface
	}
	return nil
}

func load[T any](p *atomic.Pointer[Snapshot[T]]) (Snapshot[T], bool) {
	if s := p.Load(); s != nil {
		return *s, true
	}
	return Snapshot[T]{}, false
}

// LaneStatus describes one lane for status reporting.
type LaneStatus struct {
	Lane   Lane              `json:"lane"`
	State  State             `json:"state"`
	Error  string            `json:"error,omitempty"`
	Buffer frame.BufferStats `json:"buffer"`
}

// Status reports every lane.
func (o *Orchestrator) Status() []LaneStatus {
	stats := make(map[string]frame.BufferStats)
	for _, s := range o.dist.Stats() {
		stats[s.Lane] = s
	}

	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	out := make([]LaneStatus, 0, len(Lanes))
	for _, l := range Lanes {
		info := o.lanes[l]
		ls := LaneStatus{Lane: l, State: info.state, Buffer: stats[string(l)]}
		if info.err != nil {
			ls.Error = info.err.Error()
		}
		out = append(out, ls)
	}
	return out
}

// Published returns the number of frames distributed so far.
func (o *Orchestrator) Published() uint64 {
	return o.dist.Published()
}

// Subscribe registers fn for result and state events. fn runs on the lane
// goroutine and must return quickly.
func (o *Orchestrator) Subscribe(fn func(Event)) (cancel func()) {
	return o.listeners.add(fn)
}

var _ frame.Publisher = (*Orchestrator)(nil)

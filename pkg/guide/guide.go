// Package guide turns pipeline results into announcements and haptic cues
// for the active mode.
package guide

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-sightline/internal/log"
	"github.com/teslashibe/go-sightline/pkg/announce"
	"github.com/teslashibe/go-sightline/pkg/depth"
	"github.com/teslashibe/go-sightline/pkg/engine"
	"github.com/teslashibe/go-sightline/pkg/haptic"
	"github.com/teslashibe/go-sightline/pkg/pipeline"
	"github.com/teslashibe/go-sightline/pkg/prefs"
	"github.com/teslashibe/go-sightline/pkg/spatial"
)

// ErrUnknownMode is returned for a mode name outside Modes.
var ErrUnknownMode = errors.New("guide: unknown mode")

// Results is the read side of the pipeline. *pipeline.Orchestrator
// satisfies it.
type Results interface {
	Subscribe(fn func(pipeline.Event)) (cancel func())
	Detections() (pipeline.Snapshot[engine.DetectionList], bool)
	Text() (pipeline.Snapshot[engine.RecognizedText], bool)
	Depth() *depth.Surface
	State(lane pipeline.Lane) pipeline.State
}

// Announcer is the scheduler surface the guide drives.
// *announce.Scheduler satisfies it.
type Announcer interface {
	Announce(text string, p announce.Priority, bypassDebounce bool) bool
	Stop()
}

// Option configures a Guide.
type Option func(*Guide)

// WithHaptics sets the haptic output. The default discards triggers.
func WithHaptics(t haptic.Trigger) Option {
	return func(g *Guide) {
		if t != nil {
			g.haptics = t
		}
	}
}

// WithPrefs sets the preference source.
func WithPrefs(src prefs.Source) Option {
	return func(g *Guide) {
		if src != nil {
			g.prefs = src
		}
	}
}

// WithSampler replaces the depth sampler.
func WithSampler(s *depth.Sampler) Option {
	return func(g *Guide) {
		if s != nil {
			g.sampler = s
		}
	}
}

// WithMode sets the starting mode without announcing it.
func WithMode(m Mode) Option {
	return func(g *Guide) { g.mode = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guide) {
		if l != nil {
			g.logger = l
		}
	}
}

// Guide listens to pipeline events and speaks what matters for the mode.
type Guide struct {
	results Results
	ann     Announcer
	haptics haptic.Trigger
	prefs   prefs.Source
	sampler *depth.Sampler
	logger  *slog.Logger

	mu       sync.Mutex
	mode     Mode
	notified map[pipeline.Lane]bool
	cancel   func()
}

// New creates a guide. Call Start to begin listening.
func New(results Results, ann Announcer, opts ...Option) *Guide {
	g := &Guide{
		results:  results,
		ann:      ann,
		haptics:  haptic.Nop,
		prefs:    prefs.Static(prefs.Default()),
		sampler:  depth.NewSampler(),
		logger:   log.Component("guide"),
		mode:     ModeObjects,
		notified: make(map[pipeline.Lane]bool),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Start subscribes to the pipeline. Calling it again is a no-op.
func (g *Guide) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancel != nil {
		return
	}
	g.cancel = g.results.Subscribe(g.handle)
}

// Close unsubscribes from the pipeline.
func (g *Guide) Close() {
	g.mu.Lock()
	cancel := g.cancel
	g.cancel = nil
	g.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Mode returns the active mode.
func (g *Guide) Mode() Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode
}

// SetMode switches modes. Pending speech is discarded, the new mode is
// announced at once and a SUCCESS pattern plays. Setting the current mode
// again does nothing.
func (g *Guide) SetMode(m Mode) error {
	if _, err := ParseMode(string(m)); err != nil {
		return err
	}

	g.mu.Lock()
	if g.mode == m {
		g.mu.Unlock()
		return nil
	}
	g.mode = m
	g.mu.Unlock()

	g.logger.Info("mode changed", "mode", m)
	g.ann.Stop()
	g.ann.Announce(m.Spoken(), announce.Immediate, true)
	g.trigger(haptic.Success)

	if lane := m.Lane(); g.results.State(lane).Unavailable() {
		g.notifyUnavailable(lane)
	}
	return nil
}

func (g *Guide) handle(ev pipeline.Event) {
	switch ev.Type {
	case pipeline.EventState:
		if ev.State.Unavailable() && ev.Lane == g.Mode().Lane() {
			g.notifyUnavailable(ev.Lane)
		}
	case pipeline.EventResult:
		g.handleResult(ev)
	}
}

func (g *Guide) handleResult(ev pipeline.Event) {
	mode := g.Mode()
	if ev.Lane != mode.Lane() {
		return
	}
	p := g.prefs.Current()
	bypass := !p.DebounceEnabled

	switch r := ev.Result.(type) {
	case engine.DetectionList:
		g.objects(r, p, bypass)
	case engine.RecognizedText:
		if !r.Empty() {
			g.ann.Announce(r.Text, announce.Normal, bypass)
		}
	case engine.DepthMap:
		g.navigate(r.Surface, bypass)
	}
}

func (g *Guide) objects(r engine.DetectionList, p prefs.Preferences, bypass bool) {
	if len(r.Items) == 0 {
		return
	}
	dets := g.sampler.EnrichAll(r.Items, g.results.Depth())
	descs := spatial.Describe(dets)

	prio := announce.Normal
	near := spatial.HasNear(descs)
	if near {
		prio = announce.High
	}
	if g.ann.Announce(spatial.Summary(descs, p.MaxSummaryItems), prio, bypass) && near {
		g.trigger(haptic.ProximityNear)
	}
}

func (g *Guide) navigate(surf *depth.Surface, bypass bool) {
	if surf == nil {
		return
	}
	nav := spatial.AnalyzeNavigation(g.sampler.SampleZones(surf, depth.ModeMax))

	switch {
	case !nav.ClearPath:
		if g.ann.Announce(nav.Spoken(), announce.Immediate, bypass) {
			g.trigger(haptic.Alert)
		}
	case nav.PrimaryObstacle != nil:
		if g.ann.Announce(nav.ObstacleSpoken(), announce.High, bypass) {
			g.trigger(haptic.Warning)
		}
	default:
		g.ann.Announce(nav.Spoken(), announce.Low, bypass)
	}
}

// notifyUnavailable speaks the fallback for lane the first time only.
func (g *Guide) notifyUnavailable(lane pipeline.Lane) {
	g.mu.Lock()
	seen := g.notified[lane]
	g.notified[lane] = true
	g.mu.Unlock()
	if seen {
		return
	}
	g.logger.Warn("lane unavailable", "lane", lane, "state", g.results.State(lane))
	g.ann.Announce(unavailableText(lane), announce.High, true)
}

func (g *Guide) trigger(p haptic.Pattern) {
	if g.prefs.Current().HapticsEnabled {
		g.haptics.Trigger(p)
	}
}

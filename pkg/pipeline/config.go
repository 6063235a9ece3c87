package pipeline

import (
	"log/slog"
	"time"

	"github.com/teslashibe/go-sightline/internal/observe"
	"github.com/teslashibe/go-sightline/pkg/prefs"
)

// Config holds orchestrator configuration.
type Config struct {
	// DepthInterval is the minimum gap between depth inferences. Frames that
	// arrive sooner are skipped.
	DepthInterval time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		DepthInterval: time.Second,
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records lane metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithPrefs supplies the confidence threshold.
func WithPrefs(src prefs.Source) Option {
	return func(o *Orchestrator) {
		if src != nil {
			o.prefs = src
		}
	}
}

// withClock overrides time.Now for tests.
func withClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// Package haptic defines the closed set of vibration patterns and the
// trigger interface that output devices implement.
package haptic

import (
	"sync"

	"github.com/teslashibe/go-sightline/pkg/perception"
)

// Pattern names one vibration pattern. Devices own the waveform.
type Pattern string

const (
	Tap             Pattern = "TAP"
	DoubleTap       Pattern = "DOUBLE_TAP"
	Warning         Pattern = "WARNING"
	Alert           Pattern = "ALERT"
	Success         Pattern = "SUCCESS"
	Detection       Pattern = "DETECTION"
	ProximityNear   Pattern = "PROXIMITY_NEAR"
	ProximityMedium Pattern = "PROXIMITY_MEDIUM"
	ProximityFar    Pattern = "PROXIMITY_FAR"
)

// Patterns lists every pattern.
var Patterns = []Pattern{
	Tap, DoubleTap, Warning, Alert, Success, Detection,
	ProximityNear, ProximityMedium, ProximityFar,
}

// Valid reports whether p is one of Patterns.
func (p Pattern) Valid() bool {
	for _, q := range Patterns {
		if p == q {
			return true
		}
	}
	return false
}

// ForProximity maps a proximity tier to its pattern. Unknown maps to
// Detection.
func ForProximity(p perception.Proximity) Pattern {
	switch p {
	case perception.ProximityNear:
		return ProximityNear
	case perception.ProximityMedium:
		return ProximityMedium
	case perception.ProximityFar:
		return ProximityFar
	default:
		return Detection
	}
}

// Trigger plays a pattern. Implementations must not block.
type Trigger interface {
	Trigger(p Pattern)
}

// TriggerFunc adapts a function to Trigger.
type TriggerFunc func(Pattern)

func (f TriggerFunc) Trigger(p Pattern) { f(p) }

// Nop discards every trigger.
var Nop Trigger = TriggerFunc(func(Pattern) {})

// Multi triggers every non-nil target in order.
func Multi(targets ...Trigger) Trigger {
	var ts []Trigger
	for _, t := range targets {
		if t != nil {
			ts = append(ts, t)
		}
	}
	return TriggerFunc(func(p Pattern) {
		for _, t := range ts {
			t.Trigger(p)
		}
	})
}

// Recorder keeps every triggered pattern, for tests.
type Recorder struct {
	mu       sync.Mutex
	patterns []Pattern
}

func (r *Recorder) Trigger(p Pattern) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = append(r.patterns, p)
}

// Patterns returns a copy of the triggered patterns in order.
func (r *Recorder) Patterns() []Pattern {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Pattern(nil), r.patterns...)
}

// Reset forgets recorded patterns.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patterns = nil
}

var _ Trigger = (*Recorder)(nil)

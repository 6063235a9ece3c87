// Package prefs holds the user-adjustable preference snapshot.
//
// Readers call Current and get an immutable value; writers replace the whole
// snapshot with Set. Subscribers are told about every replacement.
package prefs

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Preferences are plain configuration values read by the pipeline and guide.
type Preferences struct {
	// ConfidenceThreshold drops detections below it (0-1).
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold"`

	// DebounceEnabled suppresses repeated identical announcements.
	DebounceEnabled bool `json:"debounce_enabled" yaml:"debounce_enabled"`

	// HapticsEnabled gates haptic pattern triggers.
	HapticsEnabled bool `json:"haptics_enabled" yaml:"haptics_enabled"`

	// MaxSummaryItems limits how many objects are voiced per summary.
	MaxSummaryItems int `json:"max_summary_items" yaml:"max_summary_items"`
}

// Default returns the out-of-the-box preferences.
func Default() Preferences {
	return Preferences{
		ConfidenceThreshold: 0.5,
		DebounceEnabled:     true,
		HapticsEnabled:      true,
		MaxSummaryItems:     3,
	}
}

// Validate checks value ranges.
func (p Preferences) Validate() error {
	if p.ConfidenceThreshold < 0 || p.ConfidenceThreshold > 1 {
		return fmt.Errorf("prefs: confidence_threshold %v out of range [0,1]", p.ConfidenceThreshold)
	}
	if p.MaxSummaryItems < 0 {
		return fmt.Errorf("prefs: max_summary_items must not be negative, got %d", p.MaxSummaryItems)
	}
	return nil
}

// Source is the read side used by consumers.
type Source interface {
	Current() Preferences
}

// Store is a Source backed by an atomically swapped snapshot.
type Store struct {
	cur atomic.Pointer[Preferences]

	mu     sync.Mutex
	nextID int
	subs   map[int]func(Preferences)
}

// NewStore creates a store seeded with p.
func NewStore(p Preferences) *Store {
	s := &Store{subs: make(map[int]func(Preferences))}
	s.cur.Store(&p)
	return s
}

// Current returns the latest snapshot.
func (s *Store) Current() Preferences {
	return *s.cur.Load()
}

// Set validates and publishes p, then notifies subscribers synchronously.
func (s *Store) Set(p Preferences) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.cur.Store(&p)

	s.mu.Lock()
	fns := make([]func(Preferences), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
	return nil
}

// Update applies fn to a copy of the current snapshot and stores the result.
func (s *Store) Update(fn func(*Preferences)) error {
	p := s.Current()
	fn(&p)
	return s.Set(p)
}

// Subscribe registers fn for future changes. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Preferences)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Static is a fixed Source, handy in tests.
type Static Preferences

func (s Static) Current() Preferences { return Preferences(s) }

var (
	_ Source = (*Store)(nil)
	_ Source = Static{}
)

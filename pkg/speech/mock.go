package speech

import (
	"sync"
)

// Mock implements announce.Speaker for tests. Utterances stay in flight
// until Finish is called unless AutoFinish is set.
type Mock struct {
	SpeakFunc func(text, utteranceID string) error
	StopFunc  func() error

	// AutoFinish reports completion before Speak returns.
	AutoFinish bool

	done doneHook

	mu      sync.Mutex
	spoken  []string
	ids     []string
	stops   int
	current string
}

// Speak records text and calls SpeakFunc.
func (m *Mock) Speak(text, utteranceID string) error {
	m.mu.Lock()
	m.spoken = append(m.spoken, text)
	m.ids = append(m.ids, utteranceID)
	m.current = utteranceID
	m.mu.Unlock()

	if m.SpeakFunc != nil {
		if err := m.SpeakFunc(text, utteranceID); err != nil {
			return err
		}
	}
	if m.AutoFinish {
		m.Finish()
	}
	return nil
}

// Stop counts the call and calls StopFunc.
func (m *Mock) Stop() error {
	m.mu.Lock()
	m.stops++
	m.current = ""
	m.mu.Unlock()
	if m.StopFunc != nil {
		return m.StopFunc()
	}
	return nil
}

func (m *Mock) OnDone(fn func(string, error)) { m.done.set(fn) }

// Finish completes the current utterance.
func (m *Mock) Finish() {
	m.mu.Lock()
	id := m.current
	m.current = ""
	m.mu.Unlock()
	if id != "" {
		m.done.fire(id, nil)
	}
}

// Spoken returns every text passed to Speak.
func (m *Mock) Spoken() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.spoken...)
}

// Last returns the most recent text, or "".
func (m *Mock) Last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.spoken) == 0 {
		return ""
	}
	return m.spoken[len(m.spoken)-1]
}

// Stops returns how many times Stop was called.
func (m *Mock) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spoken, m.ids, m.stops = nil, nil, 0
}

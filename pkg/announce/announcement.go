// Package announce turns guidance text into one ordered stream of speech.
//
// A Scheduler owns a priority queue, a debounce cache and the current
// utterance. All of them are touched only by the scheduler's own goroutine;
// public methods post messages to it. Immediate announcements preempt:
// current speech stops, the queue is dropped and the new text is spoken at
// once. Everything else waits its turn, highest priority first and FIFO
// within a priority.
package announce

import (
	"strings"
	"time"
)

// Priority orders announcements. Higher values are spoken first.
type Priority int

const (
	Low Priority = iota
	Normal
	High
	Immediate
)

var priorityNames = [...]string{"LOW", "NORMAL", "HIGH", "IMMEDIATE"}

func (p Priority) String() string {
	if p < 0 || int(p) >= len(priorityNames) {
		return "UNKNOWN"
	}
	return priorityNames[p]
}

// ParsePriority parses a priority name, case-insensitively.
func ParsePriority(s string) (Priority, bool) {
	for i, n := range priorityNames {
		if strings.EqualFold(s, n) {
			return Priority(i), true
		}
	}
	return Normal, false
}

// MarshalText renders the priority name in JSON.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Announcement is one piece of text waiting for, or undergoing, speech.
type Announcement struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Priority  Priority  `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

// Speaker is the speech output device.
//
// Speak starts an utterance and returns without waiting for it to finish.
// When the utterance completes, fails or is stopped, the device reports the
// id through the OnDone callback. Stop interrupts whatever is playing.
type Speaker interface {
	Speak(text, utteranceID string) error
	Stop() error
	OnDone(fn func(utteranceID string, err error))
}

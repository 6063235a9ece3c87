// Package speech plays announcements on an output device. Every speaker
// implements announce.Speaker: Speak returns as soon as playback is
// scheduled and completion is reported through the OnDone callback.
package speech

import (
	"errors"
	"sync"

	"github.com/teslashibe/go-sightline/pkg/announce"
)

var (
	// ErrClosed is returned by Speak after Close.
	ErrClosed = errors.New("speech: speaker closed")

	// ErrInterrupted is reported to OnDone when Stop cut an utterance short.
	ErrInterrupted = errors.New("speech: interrupted")
)

var (
	_ announce.Speaker = (*RTPSpeaker)(nil)
	_ announce.Speaker = (*LogSpeaker)(nil)
	_ announce.Speaker = (*Mock)(nil)
)

// doneHook holds the completion callback shared by the speakers.
type doneHook struct {
	mu sync.RWMutex
	fn func(utteranceID string, err error)
}

func (h *doneHook) set(fn func(string, error)) {
	h.mu.Lock()
	h.fn = fn
	h.mu.Unlock()
}

func (h *doneHook) fire(id string, err error) {
	h.mu.RLock()
	fn := h.fn
	h.mu.RUnlock()
	if fn != nil {
		fn(id, err)
	}
}

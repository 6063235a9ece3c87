package speech

import (
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/teslashibe/go-sightline/internal/log"
)

// DefaultCharDuration approximates how long a character takes to say.
const DefaultCharDuration = 60 * time.Millisecond

// LogSpeaker writes announcements to the log and reports completion after an
// estimated speaking time. It stands in for audio on headless runs.
type LogSpeaker struct {
	logger  *slog.Logger
	perChar time.Duration
	done    doneHook

	mu    sync.Mutex
	timer *time.Timer
	id    string
}

// NewLogSpeaker creates a LogSpeaker. perChar <= 0 completes immediately.
func NewLogSpeaker(l *slog.Logger, perChar time.Duration) *LogSpeaker {
	if l == nil {
		l = log.Component("speech.log")
	}
	return &LogSpeaker{logger: l, perChar: perChar}
}

func (s *LogSpeaker) OnDone(fn func(string, error)) { s.done.set(fn) }

func (s *LogSpeaker) Speak(text, utteranceID string) error {
	s.logger.Info("speak", "id", utteranceID, "text", text)

	d := time.Duration(utf8.RuneCountInString(text)) * s.perChar
	if d <= 0 {
		s.done.fire(utteranceID, nil)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.id = utteranceID
	s.timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		if s.id != utteranceID {
			s.mu.Unlock()
			return
		}
		s.id, s.timer = "", nil
		s.mu.Unlock()
		s.done.fire(utteranceID, nil)
	})
	return nil
}

func (s *LogSpeaker) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	return nil
}

func (s *LogSpeaker) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.logger.Debug("interrupted", "id", s.id)
	}
	s.timer, s.id = nil, ""
}

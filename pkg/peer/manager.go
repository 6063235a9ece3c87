package peer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-sightline/internal/log"
	"github.com/teslashibe/go-sightline/pkg/frame"
	"github.com/teslashibe/go-sightline/pkg/haptic"
	"github.com/teslashibe/go-sightline/pkg/hub"
)

// Manager owns the live sessions.
type Manager struct {
	cfg    Config
	api    *webrtc.API
	audio  webrtc.TrackLocal
	pub    frame.Publisher
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

// NewManager creates a manager. Frames from every peer go to pub and every
// peer receives audio.
func NewManager(cfg Config, audio webrtc.TrackLocal, pub frame.Publisher, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.Component("peer")
	}
	me := &webrtc.MediaEngine{}
	if err := me.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("peer: register codecs: %w", err)
	}
	var se webrtc.SettingEngine
	se.SetIncludeLoopbackCandidate(cfg.IncludeLoopback)

	return &Manager{
		cfg:      cfg,
		api:      webrtc.NewAPI(webrtc.WithMediaEngine(me), webrtc.WithSettingEngine(se)),
		audio:    audio,
		pub:      pub,
		logger:   logger,
		sessions: make(map[string]*Session),
	}, nil
}

// Offer creates a session for a remote offer and returns the answer.
func (m *Manager) Offer(ctx context.Context, offer webrtc.SessionDescription) (*Session, webrtc.SessionDescription, error) {
	m.mu.Lock()
	switch {
	case m.closed:
		m.mu.Unlock()
		return nil, webrtc.SessionDescription{}, ErrClosed
	case m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions:
		m.mu.Unlock()
		return nil, webrtc.SessionDescription{}, ErrTooManyPeers
	}
	m.mu.Unlock()

	s, err := newSession(m.api, m.cfg, m.audio, m.pub, m.logger)
	if err != nil {
		return nil, webrtc.SessionDescription{}, err
	}

	if m.cfg.GatherTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.GatherTimeout)
		defer cancel()
	}
	answer, err := s.answer(ctx, offer)
	if err != nil {
		s.Close()
		return nil, webrtc.SessionDescription{}, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		s.Close()
		return nil, webrtc.SessionDescription{}, ErrClosed
	}
	s.onClose = m.remove
	m.sessions[s.ID] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.logger.Info("session started", "session", s.ID, "sessions", n)
	return s, answer, nil
}

func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.ID)
	n := len(m.sessions)
	m.mu.Unlock()
	m.logger.Info("session ended", "session", s.ID, "sessions", n)
}

// Broadcast sends v to every session's events channel.
func (m *Manager) Broadcast(v any) {
	for _, s := range m.snapshot() {
		if err := s.Send(v); err != nil && !errors.Is(err, ErrClosed) {
			m.logger.Debug("event send failed", "session", s.ID, "error", err)
		}
	}
}

// Trigger forwards a haptic pattern to every peer.
func (m *Manager) Trigger(p haptic.Pattern) {
	m.Broadcast(hub.HapticEvent(p))
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close ends every session and refuses new ones.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	var errs []error
	for _, s := range m.snapshot() {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", s.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) snapshot() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

var _ haptic.Trigger = (*Manager)(nil)

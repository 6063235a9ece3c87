package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-sightline/pkg/frame"
)

// Session is one remote peer.
type Session struct {
	ID string

	pc       *webrtc.PeerConnection
	throttle *frame.Throttle
	logger   *slog.Logger
	onClose  func(*Session)

	mu     sync.Mutex
	events *webrtc.DataChannel
	closed bool
}

func newSession(api *webrtc.API, cfg Config, audio webrtc.TrackLocal, pub frame.Publisher, logger *slog.Logger) (*Session, error) {
	pc, err := api.NewPeerConnection(cfg.rtcConfig())
	if err != nil {
		return nil, fmt.Errorf("peer: new peer connection: %w", err)
	}
	s := &Session{
		ID:       uuid.NewString(),
		pc:       pc,
		throttle: frame.NewThrottle(pub, cfg.FrameInterval),
	}
	s.logger = logger.With("session", s.ID)

	if audio != nil {
		sender, err := pc.AddTrack(audio)
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("peer: add audio track: %w", err)
		}
		// RTCP must be read for interceptors to run.
		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := sender.Read(buf); err != nil {
					return
				}
			}
		}()
	}

	pc.OnDataChannel(s.attach)
	pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		s.logger.Info("connection state", "state", st.String())
		switch st {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			s.Close()
		}
	})
	return s, nil
}

func (s *Session) attach(dc *webrtc.DataChannel) {
	switch dc.Label() {
	case ChannelFrames:
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			s.handleFrame(msg)
		})
	case ChannelEvents:
		dc.OnOpen(func() {
			s.mu.Lock()
			s.events = dc
			s.mu.Unlock()
		})
		dc.OnClose(func() {
			s.mu.Lock()
			if s.events == dc {
				s.events = nil
			}
			s.mu.Unlock()
		})
	default:
		s.logger.Debug("ignoring data channel", "label", dc.Label())
	}
}

func (s *Session) handleFrame(msg webrtc.DataChannelMessage) {
	if msg.IsString || len(msg.Data) == 0 {
		return
	}
	s.throttle.Publish(frame.New(msg.Data, 0, 0, 0))
}

// answer applies offer and returns the local answer once ICE gathering is
// complete, so the caller needs no trickle signalling.
func (s *Session) answer(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	if offer.Type != webrtc.SDPTypeOffer || offer.SDP == "" {
		return webrtc.SessionDescription{}, ErrBadOffer
	}
	if err := s.pc.SetRemoteDescription(offer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: %v", ErrBadOffer, err)
	}
	ans, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("peer: create answer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(s.pc)
	if err := s.pc.SetLocalDescription(ans); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("peer: set local description: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return webrtc.SessionDescription{}, ErrGatherTimeout
	}
	return *s.pc.LocalDescription(), nil
}

// Send writes v as JSON on the events channel. It is dropped silently until
// the remote has opened the channel.
func (s *Session) Send(v any) error {
	s.mu.Lock()
	dc := s.events
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if dc == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return dc.SendText(string(data))
}

// State returns the connection state.
func (s *Session) State() webrtc.PeerConnectionState {
	return s.pc.ConnectionState()
}

// Close tears the session down. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.events = nil
	onClose := s.onClose
	s.mu.Unlock()

	err := s.pc.Close()
	if onClose != nil {
		onClose(s)
	}
	return err
}

// Package peer accepts WebRTC sessions from a phone or browser. The remote
// sends JPEG frames on a "frames" data channel, receives speech on the
// shared Opus audio track and receives announcement and haptic events as
// JSON on an "events" data channel.
package peer

import (
	"errors"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-sightline/pkg/frame"
)

// Data channel labels.
const (
	ChannelFrames = "frames"
	ChannelEvents = "events"
)

var (
	ErrClosed        = errors.New("peer: closed")
	ErrBadOffer      = errors.New("peer: invalid offer")
	ErrTooManyPeers  = errors.New("peer: session limit reached")
	ErrGatherTimeout = errors.New("peer: ICE gathering timed out")
)

// Config configures new sessions.
type Config struct {
	ICEServers      []string      `yaml:"ice_servers"`
	MaxSessions     int           `yaml:"max_sessions"`
	GatherTimeout   time.Duration `yaml:"gather_timeout"`
	FrameInterval   time.Duration `yaml:"frame_interval"`
	IncludeLoopback bool          `yaml:"include_loopback"`
}

// DefaultConfig uses a public STUN server and allows four peers.
func DefaultConfig() Config {
	return Config{
		ICEServers:    []string{"stun:stun.l.google.com:19302"},
		MaxSessions:   4,
		GatherTimeout: 5 * time.Second,
		FrameInterval: frame.DefaultSourceInterval,
	}
}

func (c Config) rtcConfig() webrtc.Configuration {
	var cfg webrtc.Configuration
	if len(c.ICEServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: c.ICEServers}}
	}
	return cfg
}

// NewAudioTrack creates the Opus track speech is written to. One track is
// shared by every session.
func NewAudioTrack() (*webrtc.TrackLocalStaticRTP, error) {
	return webrtc.NewTrackLocalStaticRTP(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"speech", "sightline",
	)
}

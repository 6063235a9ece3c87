package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/pion/rtp"
	"gopkg.in/hraban/opus.v2"

	"github.com/teslashibe/go-sightline/internal/log"
	"github.com/teslashibe/go-sightline/pkg/tts"
)

const (
	// SampleRate matches the PCM produced by the tts backends.
	SampleRate = 24000

	// FrameDuration is the Opus frame length.
	FrameDuration = 20 * time.Millisecond

	// FrameSamples is the number of samples per frame at SampleRate.
	FrameSamples = SampleRate / 50

	// PayloadType is the dynamic payload type browsers negotiate for Opus.
	PayloadType = 111

	// Opus RTP always uses a 48 kHz clock regardless of the input rate.
	timestampStep = 48000 / 50

	maxPacketSize = 1275
)

// PacketWriter receives RTP packets. *webrtc.TrackLocalStaticRTP satisfies it.
type PacketWriter interface {
	WriteRTP(p *rtp.Packet) error
}

// Encoder encodes one frame of mono s16 PCM into data and returns the length.
// *opus.Encoder satisfies it.
type Encoder interface {
	Encode(pcm []int16, data []byte) (int, error)
}

// NewOpusEncoder returns a libopus encoder tuned for speech at SampleRate.
func NewOpusEncoder() (*opus.Encoder, error) {
	enc, err := opus.NewEncoder(SampleRate, 1, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("speech: create opus encoder: %w", err)
	}
	if err := enc.SetBitrate(24000); err != nil {
		return nil, fmt.Errorf("speech: set bitrate: %w", err)
	}
	return enc, nil
}

// RTPOption configures an RTPSpeaker.
type RTPOption func(*RTPSpeaker)

// WithEncoder replaces the Opus encoder.
func WithEncoder(enc Encoder) RTPOption {
	return func(s *RTPSpeaker) { s.enc = enc }
}

// WithFrameInterval changes packet pacing. Zero sends as fast as possible.
func WithFrameInterval(d time.Duration) RTPOption {
	return func(s *RTPSpeaker) { s.interval = d }
}

// WithSynthesisTimeout bounds each Synthesize call.
func WithSynthesisTimeout(d time.Duration) RTPOption {
	return func(s *RTPSpeaker) { s.synthTimeout = d }
}

// WithRTPLogger sets the logger.
func WithRTPLogger(l *slog.Logger) RTPOption {
	return func(s *RTPSpeaker) {
		if l != nil {
			s.logger = l
		}
	}
}

// RTPSpeaker synthesises text, encodes it as Opus and writes it to an RTP
// track in real time. One utterance plays at a time; a new Speak or Stop
// cancels the one in flight.
type RTPSpeaker struct {
	provider     tts.Provider
	out          PacketWriter
	enc          Encoder
	interval     time.Duration
	synthTimeout time.Duration
	logger       *slog.Logger
	done         doneHook

	mu       sync.Mutex
	cancel   context.CancelFunc
	finished chan struct{}
	closed   bool

	// Packet state is only touched by the playing goroutine; finished
	// serialises utterances.
	ssrc      uint32
	seq       uint16
	timestamp uint32
}

// NewRTPSpeaker creates a speaker writing to out. When no encoder option is
// given a libopus encoder is created.
func NewRTPSpeaker(provider tts.Provider, out PacketWriter, opts ...RTPOption) (*RTPSpeaker, error) {
	s := &RTPSpeaker{
		provider:     provider,
		out:          out,
		interval:     FrameDuration,
		synthTimeout: 15 * time.Second,
		logger:       log.Component("speech.rtp"),
		ssrc:         rand.Uint32(),
		seq:          uint16(rand.Uint32()),
		timestamp:    rand.Uint32(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.enc == nil {
		enc, err := NewOpusEncoder()
		if err != nil {
			return nil, err
		}
		s.enc = enc
	}
	return s, nil
}

// OnDone registers the completion callback.
func (s *RTPSpeaker) OnDone(fn func(utteranceID string, err error)) { s.done.set(fn) }

// Speak starts playing text in the background.
func (s *RTPSpeaker) Speak(text, utteranceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	prev := s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	s.cancel = cancel
	s.finished = finished

	go func() {
		defer close(finished)
		if prev != nil {
			<-prev
		}
		err := s.play(ctx, text)
		if ctx.Err() != nil {
			err = ErrInterrupted
		}
		cancel()
		s.done.fire(utteranceID, err)
	}()
	return nil
}

// Stop interrupts the current utterance, if any.
func (s *RTPSpeaker) Stop() error {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
	return nil
}

// Close stops playback and waits for it to end. Speak fails afterwards.
func (s *RTPSpeaker) Close() error {
	s.mu.Lock()
	s.closed = true
	finished := s.stopLocked()
	s.mu.Unlock()
	if finished != nil {
		<-finished
	}
	return nil
}

// stopLocked cancels the utterance in flight and returns its finished channel.
func (s *RTPSpeaker) stopLocked() chan struct{} {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	f := s.finished
	s.finished = nil
	return f
}

func (s *RTPSpeaker) play(ctx context.Context, text string) error {
	sctx, cancel := context.WithTimeout(ctx, s.synthTimeout)
	res, err := s.provider.Synthesize(sctx, text)
	cancel()
	if err != nil {
		return fmt.Errorf("speech: synthesize: %w", err)
	}
	if res.Format.SampleRate != 0 && res.Format.SampleRate != SampleRate {
		return fmt.Errorf("speech: unsupported sample rate %d", res.Format.SampleRate)
	}

	frames := Frames(res.Audio)
	s.logger.Debug("playing utterance", "frames", len(frames), "duration", res.Duration)

	var tick <-chan time.Time
	if s.interval > 0 {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		tick = t.C
	}

	buf := make([]byte, maxPacketSize)
	for i, pcm := range frames {
		if i > 0 && tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		n, err := s.enc.Encode(pcm, buf)
		if err != nil {
			return fmt.Errorf("speech: encode frame %d: %w", i, err)
		}
		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         i == 0,
				PayloadType:    PayloadType,
				SequenceNumber: s.seq,
				Timestamp:      s.timestamp,
				SSRC:           s.ssrc,
			},
			Payload: append([]byte(nil), buf[:n]...),
		}
		s.seq++
		s.timestamp += timestampStep
		if err := s.out.WriteRTP(pkt); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("speech: write rtp: %w", err)
		}
	}
	return nil
}

// Frames splits s16le PCM into FrameSamples-long frames. The last frame is
// zero-padded.
func Frames(pcm []byte) [][]int16 {
	samples := len(pcm) / 2
	if samples == 0 {
		return nil
	}
	n := (samples + FrameSamples - 1) / FrameSamples
	out := make([][]int16, n)
	for f := range out {
		frame := make([]int16, FrameSamples)
		for i := range frame {
			j := (f*FrameSamples + i) * 2
			if j+1 >= len(pcm) {
				break
			}
			frame[i] = int16(pcm[j]) | int16(pcm[j+1])<<8
		}
		out[f] = frame
	}
	return out
}

package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-sightline/internal/log"
	"github.com/teslashibe/go-sightline/pkg/tts"
)

type fakeEncoder struct{}

func (fakeEncoder) Encode(pcm []int16, data []byte) (int, error) {
	data[0] = byte(len(pcm) / 10)
	return 1, nil
}

type packetSink struct {
	mu      sync.Mutex
	packets []*rtp.Packet
}

func (p *packetSink) WriteRTP(pkt *rtp.Packet) error {
	p.mu.Lock()
	p.packets = append(p.packets, pkt)
	p.mu.Unlock()
	return nil
}

func (p *packetSink) all() []*rtp.Packet {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*rtp.Packet(nil), p.packets...)
}

type completion struct {
	id  string
	err error
}

func collect(sp interface {
	OnDone(func(string, error))
}) chan completion {
	ch := make(chan completion, 8)
	sp.OnDone(func(id string, err error) { ch <- completion{id, err} })
	return ch
}

func waitDone(t *testing.T, ch chan completion) completion {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no completion")
		return completion{}
	}
}

func TestFrames(t *testing.T) {
	assert.Nil(t, Frames(nil))

	pcm := make([]byte, (FrameSamples+10)*2)
	pcm[0], pcm[1] = 0x34, 0x12
	pcm[len(pcm)-2], pcm[len(pcm)-1] = 0xff, 0xff

	frames := Frames(pcm)
	require.Len(t, frames, 2)
	assert.Len(t, frames[1], FrameSamples, "last frame is padded")
	assert.Equal(t, int16(0x1234), frames[0][0])
	assert.Equal(t, int16(-1), frames[1][9])
	assert.Equal(t, int16(0), frames[1][10])
}

func TestRTPSpeaker_WritesPacedPackets(t *testing.T) {
	provider := &tts.Mock{SynthesizeFunc: func(context.Context, string) (*tts.AudioResult, error) {
		return tts.Silence(60*time.Millisecond, 5), nil
	}}
	sink := &packetSink{}
	sp, err := NewRTPSpeaker(provider, sink,
		WithEncoder(fakeEncoder{}), WithFrameInterval(time.Millisecond), WithRTPLogger(log.Discard()))
	require.NoError(t, err)
	done := collect(sp)

	require.NoError(t, sp.Speak("hello", "u1"))
	c := waitDone(t, done)
	assert.Equal(t, "u1", c.id)
	assert.NoError(t, c.err)

	pkts := sink.all()
	require.Len(t, pkts, 3)
	assert.True(t, pkts[0].Marker)
	assert.False(t, pkts[1].Marker)
	for i, p := range pkts {
		assert.Equal(t, uint8(PayloadType), p.PayloadType)
		assert.Equal(t, []byte{48}, p.Payload)
		if i > 0 {
			assert.Equal(t, pkts[i-1].SequenceNumber+1, p.SequenceNumber)
			assert.Equal(t, pkts[i-1].Timestamp+960, p.Timestamp)
			assert.Equal(t, pkts[0].SSRC, p.SSRC)
		}
	}
}

func TestRTPSpeaker_StopInterrupts(t *testing.T) {
	provider := &tts.Mock{SynthesizeFunc: func(context.Context, string) (*tts.AudioResult, error) {
		return tts.Silence(10*time.Second, 5), nil
	}}
	sink := &packetSink{}
	sp, err := NewRTPSpeaker(provider, sink, WithEncoder(fakeEncoder{}), WithRTPLogger(log.Discard()))
	require.NoError(t, err)
	done := collect(sp)

	require.NoError(t, sp.Speak("long", "u1"))
	require.Eventually(t, func() bool { return len(sink.all()) > 0 }, time.Second, time.Millisecond)
	require.NoError(t, sp.Stop())

	c := waitDone(t, done)
	assert.Equal(t, "u1", c.id)
	assert.ErrorIs(t, c.err, ErrInterrupted)
	assert.Less(t, len(sink.all()), 500)
}

func TestRTPSpeaker_NewSpeakReplacesCurrent(t *testing.T) {
	provider := &tts.Mock{SynthesizeFunc: func(_ context.Context, text string) (*tts.AudioResult, error) {
		if text == "long" {
			return tts.Silence(10*time.Second, 4), nil
		}
		return tts.Silence(20*time.Millisecond, 5), nil
	}}
	sp, err := NewRTPSpeaker(provider, &packetSink{}, WithEncoder(fakeEncoder{}), WithRTPLogger(log.Discard()))
	require.NoError(t, err)
	done := collect(sp)

	require.NoError(t, sp.Speak("long", "u1"))
	require.NoError(t, sp.Speak("alert", "u2"))

	first, second := waitDone(t, done), waitDone(t, done)
	assert.Equal(t, "u1", first.id)
	assert.ErrorIs(t, first.err, ErrInterrupted)
	assert.Equal(t, "u2", second.id)
	assert.NoError(t, second.err)
}

func TestRTPSpeaker_SynthesisError(t *testing.T) {
	boom := errors.New("quota")
	sp, err := NewRTPSpeaker(tts.WithError(boom), &packetSink{}, WithEncoder(fakeEncoder{}), WithRTPLogger(log.Discard()))
	require.NoError(t, err)
	done := collect(sp)

	require.NoError(t, sp.Speak("x", "u1"))
	c := waitDone(t, done)
	assert.ErrorIs(t, c.err, boom)
}

func TestRTPSpeaker_Close(t *testing.T) {
	sp, err := NewRTPSpeaker(tts.NewMock(), &packetSink{}, WithEncoder(fakeEncoder{}), WithRTPLogger(log.Discard()))
	require.NoError(t, err)
	require.NoError(t, sp.Close())
	assert.ErrorIs(t, sp.Speak("x", "u1"), ErrClosed)
}

func TestLogSpeaker(t *testing.T) {
	t.Run("immediate", func(t *testing.T) {
		sp := NewLogSpeaker(log.Discard(), 0)
		done := collect(sp)
		require.NoError(t, sp.Speak("hi", "a"))
		assert.Equal(t, "a", waitDone(t, done).id)
	})

	t.Run("timed and stopped", func(t *testing.T) {
		sp := NewLogSpeaker(log.Discard(), time.Millisecond)
		done := collect(sp)

		require.NoError(t, sp.Speak("hello", "a"))
		assert.Equal(t, "a", waitDone(t, done).id)

		sp.perChar = time.Hour
		require.NoError(t, sp.Speak("hello", "b"))
		require.NoError(t, sp.Stop())
		select {
		case c := <-done:
			t.Fatalf("stopped utterance completed: %v", c)
		case <-time.After(20 * time.Millisecond):
		}
	})
}

func TestMock(t *testing.T) {
	m := &Mock{}
	done := collect(m)

	require.NoError(t, m.Speak("a", "1"))
	m.Finish()
	assert.Equal(t, completion{id: "1"}, waitDone(t, done))

	m.AutoFinish = true
	require.NoError(t, m.Speak("b", "2"))
	assert.Equal(t, "2", waitDone(t, done).id)
	assert.Equal(t, []string{"a", "b"}, m.Spoken())
	assert.Equal(t, "b", m.Last())

	_ = m.Stop()
	assert.Equal(t, 1, m.Stops())
}

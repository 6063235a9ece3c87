// Package tts turns announcement text into raw audio for the speech output.
//
// Providers return complete buffers. Speech is short (a sentence or two of
// scene description), so there is no streaming path; the speaker encodes and
// paces the buffer itself.
//
//	provider, _ := tts.NewOpenAI(tts.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "person at 12 o'clock, very close")
//	// result.Audio is 24 kHz mono s16le PCM
package tts

import (
	"context"
	"time"
)

// Provider synthesises speech.
type Provider interface {
	// Synthesize converts text to audio, returning the complete buffer.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult is a complete synthesis result.
type AudioResult struct {
	Audio     []byte
	Format    AudioFormat
	Duration  time.Duration
	CharCount int
	LatencyMs int64
}

// AudioFormat describes PCM layout.
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
	BitDepth   int
}

// BytesPerSecond is the PCM data rate, or 0 for compressed encodings.
func (f AudioFormat) BytesPerSecond() int {
	if f.BitDepth == 0 {
		return 0
	}
	ch := f.Channels
	if ch == 0 {
		ch = 1
	}
	return f.SampleRate * ch * f.BitDepth / 8
}

// DurationOf estimates playback time for n bytes of audio in this format.
func (f AudioFormat) DurationOf(n int) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bps)
}

// Encoding names an audio encoding.
type Encoding string

const (
	EncodingPCM16 Encoding = "pcm_16000" // 16kHz mono PCM16
	EncodingPCM24 Encoding = "pcm_24000" // 24kHz mono PCM16, what OpenAI "pcm" returns
	EncodingPCM48 Encoding = "pcm_48000" // 48kHz mono PCM16
)

// PCM24 is the format produced by the OpenAI backend.
var PCM24 = AudioFormat{Encoding: EncodingPCM24, SampleRate: 24000, Channels: 1, BitDepth: 16}

// SampleRateFromEncoding extracts the sample rate from an encoding type.
func SampleRateFromEncoding(enc Encoding) int {
	switch enc {
	case EncodingPCM16:
		return 16000
	case EncodingPCM48:
		return 48000
	default:
		return 24000
	}
}

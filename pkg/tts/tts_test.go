package tts_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/teslashibe/go-sightline/internal/log"
	"github.com/teslashibe/go-sightline/pkg/tts"
)

func TestMockProvider(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	t.Run("Synthesize returns silence", func(t *testing.T) {
		result, err := mock.Synthesize(ctx, "Hello world")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// 11 chars * 20ms * 48000 bytes/s
		if len(result.Audio) != 10560 {
			t.Errorf("expected 10560 bytes, got %d", len(result.Audio))
		}
		if result.Duration != 220*time.Millisecond {
			t.Errorf("expected 220ms, got %v", result.Duration)
		}
		if result.Format.SampleRate != 24000 {
			t.Errorf("expected 24000 sample rate, got %d", result.Format.SampleRate)
		}
	})

	t.Run("Calls are tracked", func(t *testing.T) {
		_ = mock.Close()
		if mock.CallCount("Synthesize") != 1 || mock.CallCount("Close") != 1 {
			t.Errorf("unexpected calls: %+v", mock.Calls())
		}
		mock.Reset()
		if len(mock.Calls()) != 0 {
			t.Error("expected calls to be cleared")
		}
	})
}

func TestMockWithError(t *testing.T) {
	testErr := errors.New("test error")
	_, err := tts.WithError(testErr).Synthesize(context.Background(), "Hello")
	if !errors.Is(err, testErr) {
		t.Errorf("expected test error, got %v", err)
	}
}

func TestMockWithLatency(t *testing.T) {
	mock := tts.WithLatency(tts.NewMock(), time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := mock.Synthesize(ctx, "slow"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestAudioFormat(t *testing.T) {
	if got := tts.PCM24.BytesPerSecond(); got != 48000 {
		t.Errorf("BytesPerSecond = %d, want 48000", got)
	}
	if got := tts.PCM24.DurationOf(960); got != 20*time.Millisecond {
		t.Errorf("DurationOf(960) = %v, want 20ms", got)
	}
	if got := (tts.AudioFormat{}).DurationOf(100); got != 0 {
		t.Errorf("zero format duration = %v", got)
	}

	tests := []struct {
		enc  tts.Encoding
		want int
	}{
		{tts.EncodingPCM16, 16000},
		{tts.EncodingPCM24, 24000},
		{tts.EncodingPCM48, 48000},
		{"unknown", 24000},
	}
	for _, tt := range tests {
		if got := tts.SampleRateFromEncoding(tt.enc); got != tt.want {
			t.Errorf("SampleRateFromEncoding(%s) = %d, want %d", tt.enc, got, tt.want)
		}
	}
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	if _, err := tts.NewOpenAI(); !errors.Is(err, tts.ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestOpenAISynthesize(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing auth header")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write(make([]byte, 4801)) // odd length is trimmed to whole samples
	}))
	defer srv.Close()

	p, err := tts.NewOpenAI(
		tts.WithAPIKey("sk-test"),
		tts.WithBaseURL(srv.URL),
		tts.WithVoice(tts.VoiceAlloy),
		tts.WithLogger(log.Discard()),
	)
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	defer p.Close()

	res, err := p.Synthesize(context.Background(), "  Clear path ahead ")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(res.Audio) != 4800 {
		t.Errorf("audio bytes = %d, want 4800", len(res.Audio))
	}
	if res.Duration != 50*time.Millisecond {
		t.Errorf("duration = %v, want 50ms", res.Duration)
	}
	if got["response_format"] != "pcm" || got["voice"] != "alloy" || got["input"] != "Clear path ahead" {
		t.Errorf("unexpected payload: %v", got)
	}
}

func TestOpenAIErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down","code":"rate_limit_exceeded"}}`))
	}))
	defer srv.Close()

	p, err := tts.NewOpenAI(
		tts.WithAPIKey("sk-test"),
		tts.WithBaseURL(srv.URL),
		tts.WithRetry(2, time.Millisecond),
		tts.WithLogger(log.Discard()),
	)
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}

	t.Run("API error after retries", func(t *testing.T) {
		_, err := p.Synthesize(context.Background(), "hello")
		var apiErr *tts.APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if !apiErr.IsRateLimited() || !apiErr.IsRetryable() || apiErr.Code != "rate_limit_exceeded" {
			t.Errorf("unexpected error: %+v", apiErr)
		}
		if hits.Load() != 3 {
			t.Errorf("expected 3 attempts, got %d", hits.Load())
		}
	})

	t.Run("empty text", func(t *testing.T) {
		if _, err := p.Synthesize(context.Background(), " "); !errors.Is(err, tts.ErrEmptyText) {
			t.Errorf("expected ErrEmptyText, got %v", err)
		}
	})

	t.Run("closed", func(t *testing.T) {
		_ = p.Close()
		if _, err := p.Synthesize(context.Background(), "hello"); !errors.Is(err, tts.ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	})
}

func TestWrapError(t *testing.T) {
	if tts.WrapError("x", nil) != nil {
		t.Error("nil should stay nil")
	}
	err := tts.WrapError("openai", tts.ErrNoAPIKey)
	if !errors.Is(err, tts.ErrNoAPIKey) {
		t.Errorf("expected unwrap to sentinel: %v", err)
	}
	if err.Error() != "tts [openai]: tts: API key required" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

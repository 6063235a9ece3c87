package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-sightline/internal/httpc"
)

const (
	openAITTSURL   = "https://api.openai.com/v1/audio/speech"
	providerOpenAI = "openai"
)

// OpenAI voices.
const (
	VoiceAlloy   = "alloy"
	VoiceEcho    = "echo"
	VoiceFable   = "fable"
	VoiceNova    = "nova"
	VoiceOnyx    = "onyx"
	VoiceShimmer = "shimmer"
)

// OpenAI models.
const (
	ModelTTS1         = "tts-1"
	ModelTTS1HD       = "tts-1-hd"
	ModelGPT4oMiniTTS = "gpt-4o-mini-tts"
)

// OpenAI synthesises 24 kHz PCM through the OpenAI speech endpoint.
type OpenAI struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
	closed  atomic.Bool
}

type speechRequest struct {
	Model          string  `json:"model"`
	Voice          string  `json:"voice"`
	Input          string  `json:"input"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed,omitempty"`
	Instructions   string  `json:"instructions,omitempty"`
}

// NewOpenAI creates an OpenAI provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Voice == "" {
		cfg.Voice = VoiceNova
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAITTSURL
	}

	return &OpenAI{
		config:  cfg,
		client:  httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "tts.openai"),
		baseURL: baseURL,
	}, nil
}

// Synthesize returns PCM24 audio for text.
func (o *OpenAI) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	if o.closed.Load() {
		return nil, WrapError(providerOpenAI, ErrClosed)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, WrapError(providerOpenAI, ErrEmptyText)
	}

	body, err := json.Marshal(speechRequest{
		Model:          o.config.Model,
		Voice:          o.config.Voice,
		Input:          text,
		ResponseFormat: "pcm",
		Speed:          o.config.Speed,
		Instructions:   o.config.Instructions,
	})
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("marshal payload: %w", err))
	}

	start := time.Now()
	resp, err := httpc.Do(ctx, o.client,
		httpc.Retry{Max: o.config.MaxRetries, Delay: o.config.RetryDelay},
		func(ctx context.Context) (*http.Request, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL, bytes.NewReader(body))
			if err != nil {
				return nil, err
			}
			req.Header.Set("Authorization", "Bearer "+o.config.APIKey)
			req.Header.Set("Content-Type", "application/json")
			return req, nil
		},
		func(attempt, status int, err error) {
			o.logger.Warn("retrying request", "attempt", attempt, "status", status, "error", err)
		},
	)
	if err != nil {
		return nil, WrapError(providerOpenAI, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("read response: %w", err))
	}
	// s16le must have whole samples.
	if len(audio)%2 != 0 {
		audio = audio[:len(audio)-1]
	}
	latency := time.Since(start).Milliseconds()

	o.logger.Debug("synthesized audio",
		"chars", len(text),
		"bytes", len(audio),
		"latency_ms", latency,
		"voice", o.config.Voice,
	)

	return &AudioResult{
		Audio:     audio,
		Format:    PCM24,
		Duration:  PCM24.DurationOf(len(audio)),
		CharCount: len(text),
		LatencyMs: latency,
	}, nil
}

// Close releases idle connections. Later calls to Synthesize fail.
func (o *OpenAI) Close() error {
	if o.closed.CompareAndSwap(false, true) {
		o.client.CloseIdleConnections()
	}
	return nil
}

// Voice returns the configured voice.
func (o *OpenAI) Voice() string { return o.config.Voice }

func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	message := strings.TrimSpace(string(body))
	code := ""
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		code = errResp.Error.Code
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerOpenAI,
	}
}

var _ Provider = (*OpenAI)(nil)

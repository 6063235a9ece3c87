package tts

import (
	"log/slog"
	"time"

	"github.com/teslashibe/go-sightline/internal/log"
)

// Config holds provider configuration. Use the WithXxx options to set it.
type Config struct {
	APIKey  string
	BaseURL string

	Voice        string
	Model        string
	Speed        float64
	Instructions string

	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Option configures a provider.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL overrides the speech endpoint.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithVoice sets the voice.
func WithVoice(voice string) Option {
	return func(c *Config) { c.Voice = voice }
}

// WithModel sets the model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithSpeed sets the speaking rate (0.25 to 4.0, 1 is normal).
func WithSpeed(speed float64) Option {
	return func(c *Config) { c.Speed = speed }
}

// WithInstructions sets delivery instructions for models that accept them.
func WithInstructions(s string) Option {
	return func(c *Config) { c.Instructions = s }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) { c.Timeout = timeout }
}

// WithRetry configures retries of rate-limited and 5xx responses.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// DefaultConfig returns the OpenAI defaults.
func DefaultConfig() *Config {
	return &Config{
		Voice:      VoiceNova,
		Model:      ModelGPT4oMiniTTS,
		Speed:      1.0,
		Timeout:    15 * time.Second,
		MaxRetries: 2,
		RetryDelay: 200 * time.Millisecond,
		Logger:     log.L(),
	}
}

// Apply applies opts in order.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}

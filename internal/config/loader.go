package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over Default, applies ApplyEnv and
// validates the result. Unknown keys are rejected. An empty document yields
// the defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg is coherent and returns every problem found,
// joined.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if lvl := strings.ToLower(cfg.Server.LogLevel); lvl != "" && !slices.Contains(validLogLevels, lvl) {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: %s", cfg.Server.LogLevel, strings.Join(validLogLevels, ", ")))
	}

	switch cfg.Source.Kind {
	case SourceNone:
	case SourceCamera:
		if cfg.Source.Device == "" {
			errs = append(errs, errors.New("source.device is required for a camera source"))
		}
		if cfg.Source.Quality < 1 || cfg.Source.Quality > 100 {
			errs = append(errs, fmt.Errorf("source.quality %d out of range [1,100]", cfg.Source.Quality))
		}
	case SourceWebSocket:
		if cfg.Source.URL == "" {
			errs = append(errs, errors.New("source.url is required for a websocket source"))
		}
	default:
		errs = append(errs, fmt.Errorf("source.kind %q is invalid; valid values: none, camera, websocket", cfg.Source.Kind))
	}
	if cfg.Source.Interval < 0 {
		errs = append(errs, errors.New("source.interval must not be negative"))
	}

	if cfg.Pipeline.DepthInterval < 0 {
		errs = append(errs, errors.New("pipeline.depth_interval must not be negative"))
	}
	if c := cfg.Engines.Detection.Confidence; c < 0 || c > 1 {
		errs = append(errs, fmt.Errorf("engines.detection.confidence %v out of range [0,1]", c))
	}
	if t := cfg.Engines.Detection.NMSThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("engines.detection.nms_threshold %v out of range [0,1]", t))
	}

	switch cfg.Speech.Output {
	case OutputLog:
	case OutputWebRTC:
		if cfg.Speech.TTS.APIKey == "" {
			errs = append(errs, errors.New("speech.tts.api_key is required for webrtc output (or set OPENAI_API_KEY)"))
		}
		if !cfg.WebRTC.Enabled {
			errs = append(errs, errors.New("speech.output webrtc requires webrtc.enabled"))
		}
	default:
		errs = append(errs, fmt.Errorf("speech.output %q is invalid; valid values: log, webrtc", cfg.Speech.Output))
	}
	if cfg.Speech.Debounce < 0 {
		errs = append(errs, errors.New("speech.debounce must not be negative"))
	}
	if s := cfg.Speech.TTS.Speed; s != 0 && (s < 0.25 || s > 4) {
		errs = append(errs, fmt.Errorf("speech.tts.speed %v out of range [0.25,4]", s))
	}

	if cfg.WebRTC.Enabled && cfg.WebRTC.MaxSessions < 1 {
		errs = append(errs, errors.New("webrtc.max_sessions must be at least 1"))
	}

	if err := cfg.Preferences.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

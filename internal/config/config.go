// Package config loads the sightline YAML configuration.
//
// A file is decoded over Default, so any section or field it omits keeps its
// default value. Secrets may come from the environment instead of the file;
// see ApplyEnv.
package config

import (
	"time"

	"github.com/teslashibe/go-sightline/pkg/prefs"
)

// Source kinds.
const (
	SourceNone      = "none"
	SourceCamera    = "camera"
	SourceWebSocket = "websocket"
)

// Speech outputs.
const (
	OutputLog    = "log"
	OutputWebRTC = "webrtc"
)

// Config is the root of the YAML file.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Source      SourceConfig      `yaml:"source"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Engines     EnginesConfig     `yaml:"engines"`
	Speech      SpeechConfig      `yaml:"speech"`
	WebRTC      WebRTCConfig      `yaml:"webrtc"`
	Preferences prefs.Preferences `yaml:"preferences"`
}

// ServerConfig holds the control surface settings.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	LogLevel  string `yaml:"log_level"`
	StaticDir string `yaml:"static_dir"`
}

// SourceConfig selects where frames come from. Frames may also arrive via
// POST /api/frames and WebRTC regardless of Kind.
type SourceConfig struct {
	Kind     string        `yaml:"kind"`
	Interval time.Duration `yaml:"interval"`

	// Camera
	Device  string `yaml:"device"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	Quality int    `yaml:"quality"`

	// WebSocket
	URL string `yaml:"url"`
}

// PipelineConfig tunes the inference lanes.
type PipelineConfig struct {
	DepthInterval time.Duration `yaml:"depth_interval"`
}

// EnginesConfig configures each lane's backend. An empty model path leaves
// the lane without an engine, which marks it failed at start.
type EnginesConfig struct {
	Detection DetectionConfig `yaml:"detection"`
	Depth     DepthConfig     `yaml:"depth"`
	Text      TextConfig      `yaml:"text"`
}

// DetectionConfig is the YOLO ONNX model.
type DetectionConfig struct {
	Model        string  `yaml:"model"`
	Confidence   float32 `yaml:"confidence"`
	NMSThreshold float32 `yaml:"nms_threshold"`
	InputSize    int     `yaml:"input_size"`
}

// DepthConfig is the MiDaS ONNX model.
type DepthConfig struct {
	Model     string `yaml:"model"`
	InputSize int    `yaml:"input_size"`
}

// TextConfig is Google Cloud Vision text detection.
type TextConfig struct {
	Enabled       bool     `yaml:"enabled"`
	APIKey        string   `yaml:"api_key"`
	Endpoint      string   `yaml:"endpoint"`
	Feature       string   `yaml:"feature"`
	LanguageHints []string `yaml:"language_hints"`
}

// SpeechConfig selects the speech output and the announcement policy.
type SpeechConfig struct {
	Output   string        `yaml:"output"`
	Debounce time.Duration `yaml:"debounce"`
	TTS      TTSConfig     `yaml:"tts"`
}

// TTSConfig is the OpenAI speech endpoint.
type TTSConfig struct {
	APIKey       string        `yaml:"api_key"`
	BaseURL      string        `yaml:"base_url"`
	Voice        string        `yaml:"voice"`
	Model        string        `yaml:"model"`
	Speed        float64       `yaml:"speed"`
	Instructions string        `yaml:"instructions"`
	Timeout      time.Duration `yaml:"timeout"`
}

// WebRTCConfig configures browser and phone peers.
type WebRTCConfig struct {
	Enabled         bool          `yaml:"enabled"`
	ICEServers      []string      `yaml:"ice_servers"`
	MaxSessions     int           `yaml:"max_sessions"`
	GatherTimeout   time.Duration `yaml:"gather_timeout"`
	IncludeLoopback bool          `yaml:"include_loopback"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:     ":8080",
			LogLevel: "info",
		},
		Source: SourceConfig{
			Kind:     SourceNone,
			Interval: 333 * time.Millisecond,
			Device:   "0",
			Width:    1280,
			Height:   720,
			Quality:  80,
		},
		Pipeline: PipelineConfig{
			DepthInterval: time.Second,
		},
		Engines: EnginesConfig{
			Detection: DetectionConfig{
				Model:        "models/yolov8n.onnx",
				Confidence:   0.25,
				NMSThreshold: 0.45,
				InputSize:    640,
			},
			Depth: DepthConfig{
				Model:     "models/midas_v21_small_256.onnx",
				InputSize: 256,
			},
			Text: TextConfig{
				Feature:       "TEXT_DETECTION",
				LanguageHints: []string{"en"},
			},
		},
		Speech: SpeechConfig{
			Output:   OutputLog,
			Debounce: 3 * time.Second,
			TTS: TTSConfig{
				Voice:   "nova",
				Model:   "gpt-4o-mini-tts",
				Speed:   1,
				Timeout: 15 * time.Second,
			},
		},
		WebRTC: WebRTCConfig{
			Enabled:       true,
			ICEServers:    []string{"stun:stun.l.google.com:19302"},
			MaxSessions:   4,
			GatherTimeout: 5 * time.Second,
		},
		Preferences: prefs.Default(),
	}
}

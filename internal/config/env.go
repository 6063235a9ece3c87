package config

import "os"

// Environment variables read by ApplyEnv and Path.
const (
	EnvConfigPath = "SIGHTLINE_CONFIG"
	EnvOpenAIKey  = "OPENAI_API_KEY"
	EnvGoogleKey  = "GOOGLE_API_KEY"
	EnvLogLevel   = "LOG_LEVEL"
)

// Path returns the config file to load: flagValue if set, otherwise
// SIGHTLINE_CONFIG. An empty result means run on defaults.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvConfigPath)
}

// ApplyEnv fills secrets the file left empty from the environment.
// LOG_LEVEL always wins over the file.
func ApplyEnv(cfg *Config) {
	if cfg.Speech.TTS.APIKey == "" {
		cfg.Speech.TTS.APIKey = os.Getenv(EnvOpenAIKey)
	}
	if cfg.Engines.Text.APIKey == "" {
		cfg.Engines.Text.APIKey = os.Getenv(EnvGoogleKey)
	}
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		cfg.Server.LogLevel = lvl
	}
}

package config

import "reflect"

// Diff describes what changed between two configs. Preferences and the log
// level apply live; every other section needs a restart.
type Diff struct {
	PreferencesChanged bool
	LogLevelChanged    bool

	// Restart lists the top-level sections that changed and only take
	// effect on restart.
	Restart []string
}

// Changed reports whether anything differs.
func (d Diff) Changed() bool {
	return d.PreferencesChanged || d.LogLevelChanged || len(d.Restart) > 0
}

// Compare returns what changed from old to new.
func Compare(old, new *Config) Diff {
	d := Diff{
		PreferencesChanged: old.Preferences != new.Preferences,
		LogLevelChanged:    old.Server.LogLevel != new.Server.LogLevel,
	}

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""

	sections := []struct {
		name     string
		old, new any
	}{
		{"server", oldServer, newServer},
		{"source", old.Source, new.Source},
		{"pipeline", old.Pipeline, new.Pipeline},
		{"engines", old.Engines, new.Engines},
		{"speech", old.Speech, new.Speech},
		{"webrtc", old.WebRTC, new.WebRTC},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			d.Restart = append(d.Restart, s.name)
		}
	}
	return d
}

package pipeline

import (
	"github.com/teslashibe/go-sightline/pkg/engine"
)

// Lane names one perception pipeline.
type Lane string

const (
	LaneDetection Lane = "detection"
	LaneText      Lane = "text"
	LaneDepth     Lane = "depth"
)

// Lanes lists every lane in start order.
var Lanes = []Lane{LaneDetection, LaneText, LaneDepth}

// Kind is the result variant a lane's engine must produce.
func (l Lane) Kind() engine.Kind {
	switch l {
	case LaneText:
		return engine.KindText
	case LaneDepth:
		return engine.KindDepth
	default:
		return engine.KindDetections
	}
}

// State is a lane's lifecycle position.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateRunning
	// StateDisabled means the lane stopped itself after a runtime failure.
	StateDisabled
	// StateFailed means the engine never loaded or none was configured.
	StateFailed
	StateStopped
)

var stateNames = [...]string{"idle", "loading", "running", "disabled", "failed", "stopped"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Unavailable reports whether the lane will not produce results again this
// session.
func (s State) Unavailable() bool {
	return s == StateDisabled || s == StateFailed
}

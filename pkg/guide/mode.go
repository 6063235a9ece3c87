package guide

import (
	"fmt"
	"strings"

	"github.com/teslashibe/go-sightline/pkg/pipeline"
)

// Mode selects which lane's results are voiced.
type Mode string

const (
	ModeObjects    Mode = "objects"
	ModeText       Mode = "text"
	ModeNavigation Mode = "navigation"
)

// Modes lists every mode.
var Modes = []Mode{ModeObjects, ModeText, ModeNavigation}

// ParseMode accepts a mode name in any case.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range Modes {
		if m == v {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Lane returns the lane whose results the mode voices.
func (m Mode) Lane() pipeline.Lane {
	switch m {
	case ModeText:
		return pipeline.LaneText
	case ModeNavigation:
		return pipeline.LaneDepth
	default:
		return pipeline.LaneDetection
	}
}

// Spoken is the confirmation read out on a mode change.
func (m Mode) Spoken() string {
	switch m {
	case ModeText:
		return "Text reading mode"
	case ModeNavigation:
		return "Navigation mode"
	default:
		return "Object detection mode"
	}
}

func (m Mode) String() string { return string(m) }

// unavailableText is spoken once when a lane can never produce results.
func unavailableText(l pipeline.Lane) string {
	switch l {
	case pipeline.LaneText:
		return "Text recognition is unavailable"
	case pipeline.LaneDepth:
		return "Depth sensing is unavailable. Navigation guidance is off"
	default:
		return "Object detection is unavailable"
	}
}

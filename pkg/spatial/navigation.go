package spatial

import (
	"github.com/teslashibe/go-sightline/pkg/perception"
)

// Spoken forms for navigation results.
const (
	ClearPathAhead      = "Clear path ahead"
	CheckingSurrounding = "Checking surroundings"
)

// Navigation is the result of analysing the nine zone readings.
type Navigation struct {
	Zones           []perception.ZoneReading `json:"zones"`
	ClearPath       bool                     `json:"clear_path"`
	PrimaryObstacle *perception.ZoneReading  `json:"primary_obstacle,omitempty"`
}

// AnalyzeNavigation decides whether the way ahead is clear and picks the
// nearest obstacle. The path is clear unless the centre zone is near; a
// missing centre reading counts as clear. Among near zones the highest
// closeness wins, earlier zones winning ties.
func AnalyzeNavigation(readings []perception.ZoneReading) Navigation {
	nav := Navigation{Zones: readings, ClearPath: true}
	for i := range readings {
		r := readings[i]
		if r.Zone == perception.ZoneMiddleCenter && r.Proximity == perception.ProximityNear {
			nav.ClearPath = false
		}
		if r.Proximity != perception.ProximityNear {
			continue
		}
		if nav.PrimaryObstacle == nil || r.Closeness > nav.PrimaryObstacle.Closeness {
			nav.PrimaryObstacle = &r
		}
	}
	return nav
}

// Spoken renders the analysis, e.g. "Obstacle very close directly ahead".
func (n Navigation) Spoken() string {
	switch {
	case n.ClearPath:
		return ClearPathAhead
	case n.PrimaryObstacle != nil:
		return n.ObstacleSpoken()
	default:
		// Unreachable: a blocked centre always yields an obstacle.
		return CheckingSurrounding
	}
}

// ObstacleSpoken describes the primary obstacle, or returns "" if there is none.
// Off-centre obstacles are not part of Spoken when the path is clear.
func (n Navigation) ObstacleSpoken() string {
	if n.PrimaryObstacle == nil {
		return ""
	}
	return "Obstacle " + n.PrimaryObstacle.Proximity.Phrase() + " " + n.PrimaryObstacle.Zone.Description()
}

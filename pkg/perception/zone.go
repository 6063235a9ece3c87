package perception

// NavigationZone is one cell of the 3×3 partition of the frame, row-major.
type NavigationZone int

const (
	ZoneTopLeft NavigationZone = iota
	ZoneTopCenter
	ZoneTopRight
	ZoneMiddleLeft
	ZoneMiddleCenter
	ZoneMiddleRight
	ZoneBottomLeft
	ZoneBottomCenter
	ZoneBottomRight
)

// Zones lists all zones in enumeration order.
var Zones = [9]NavigationZone{
	ZoneTopLeft, ZoneTopCenter, ZoneTopRight,
	ZoneMiddleLeft, ZoneMiddleCenter, ZoneMiddleRight,
	ZoneBottomLeft, ZoneBottomCenter, ZoneBottomRight,
}

var zoneNames = [9]string{
	"TOP_LEFT", "TOP_CENTER", "TOP_RIGHT",
	"MIDDLE_LEFT", "MIDDLE_CENTER", "MIDDLE_RIGHT",
	"BOTTOM_LEFT", "BOTTOM_CENTER", "BOTTOM_RIGHT",
}

var zoneDescriptions = [9]string{
	"upper left", "overhead", "upper right",
	"on your left", "directly ahead", "on your right",
	"lower left", "at your feet", "lower right",
}

// ZoneAt returns the zone containing the normalized point (x, y).
// Each axis is split into equal bands at 1/3 and 2/3.
func ZoneAt(x, y float64) NavigationZone {
	return NavigationZone(band(y)*3 + band(x))
}

func band(v float64) int {
	switch {
	case v < 1.0/3.0:
		return 0
	case v < 2.0/3.0:
		return 1
	default:
		return 2
	}
}

// Rect returns the normalized region covered by the zone.
func (z NavigationZone) Rect() Box {
	col := float64(int(z) % 3)
	row := float64(int(z) / 3)
	return Box{
		Left:   col / 3,
		Top:    row / 3,
		Right:  (col + 1) / 3,
		Bottom: (row + 1) / 3,
	}
}

// Description is the human phrase used in spoken guidance.
func (z NavigationZone) Description() string {
	if z < 0 || int(z) >= len(zoneDescriptions) {
		return "nearby"
	}
	return zoneDescriptions[z]
}

func (z NavigationZone) String() string {
	if z < 0 || int(z) >= len(zoneNames) {
		return "UNKNOWN"
	}
	return zoneNames[z]
}

// MarshalText renders the zone name in JSON.
func (z NavigationZone) MarshalText() ([]byte, error) {
	return []byte(z.String()), nil
}

// ZoneReading is the sampled closeness of one zone.
type ZoneReading struct {
	Zone      NavigationZone `json:"zone"`
	Closeness uint8          `json:"closeness"`
	Proximity Proximity      `json:"proximity"`
}

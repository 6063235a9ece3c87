// Package perception holds the data model shared by every perception lane:
// proximity tiers, normalized bounding boxes, detections, the 3×3 navigation
// grid and the class label table.
package perception

// Proximity is a coarse distance tier derived from a closeness value.
type Proximity int

const (
	// ProximityUnknown means no depth information was available.
	ProximityUnknown Proximity = iota
	ProximityNear
	ProximityMedium
	ProximityFar
)

// Closeness thresholds on the 0-255 scale (255 = nearest).
const (
	NearThreshold   = 200
	MediumThreshold = 100
	FarThreshold    = 30
)

// Classify maps a closeness value to a proximity tier.
//
// Values below FarThreshold still classify as Far; there is no "very far"
// tier.
func Classify(closeness uint8) Proximity {
	switch {
	case closeness >= NearThreshold:
		return ProximityNear
	case closeness >= MediumThreshold:
		return ProximityMedium
	case closeness >= FarThreshold:
		return ProximityFar
	default:
		return ProximityFar
	}
}

// Rank orders tiers by urgency: Near < Medium < Far < Unknown.
func (p Proximity) Rank() int {
	switch p {
	case ProximityNear:
		return 0
	case ProximityMedium:
		return 1
	case ProximityFar:
		return 2
	default:
		return 3
	}
}

// Phrase returns the spoken qualifier for the tier. Unknown has none.
func (p Proximity) Phrase() string {
	switch p {
	case ProximityNear:
		return "very close"
	case ProximityMedium:
		return "nearby"
	case ProximityFar:
		return "in the distance"
	default:
		return ""
	}
}

func (p Proximity) String() string {
	switch p {
	case ProximityNear:
		return "NEAR"
	case ProximityMedium:
		return "MED"
	case ProximityFar:
		return "FAR"
	default:
		return "UNKNOWN"
	}
}

// MarshalText lets proximity tiers render as their names in JSON.
func (p Proximity) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

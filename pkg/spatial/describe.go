package spatial

import (
	"fmt"
	"sort"
	"strings"

	"github.com/teslashibe/go-sightline/pkg/perception"
)

// NoObjects is spoken when there is nothing to describe.
const NoObjects = "No objects detected"

// Description is a detection placed relative to the user.
type Description struct {
	Clock      ClockPosition        `json:"clock"`
	Proximity  perception.Proximity `json:"proximity"`
	Label      string               `json:"label"`
	Confidence float64              `json:"confidence"`
}

// Spoken renders the description as a short phrase, e.g.
// "person at 12 o'clock, very close".
func (d Description) Spoken() string {
	phrase := d.Proximity.Phrase()
	if phrase == "" {
		return fmt.Sprintf("%s at %s", d.Label, d.Clock)
	}
	return fmt.Sprintf("%s at %s, %s", d.Label, d.Clock, phrase)
}

// Describe places each detection by its box centre and ranks the result:
// nearer tiers first, then higher confidence.
func Describe(dets []perception.Detection) []Description {
	out := make([]Description, 0, len(dets))
	for _, d := range dets {
		x, _ := d.Box.Center()
		label := d.Label
		if label == "" {
			label = perception.Label(d.ClassID)
		}
		out = append(out, Description{
			Clock:      ClockPositionAt(x),
			Proximity:  d.Proximity,
			Label:      label,
			Confidence: d.Confidence,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := out[i].Proximity.Rank(), out[j].Proximity.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// Summary joins the first maxItems descriptions. maxItems <= 0 keeps all.
func Summary(descs []Description, maxItems int) string {
	if len(descs) == 0 {
		return NoObjects
	}
	if maxItems > 0 && len(descs) > maxItems {
		descs = descs[:maxItems]
	}
	parts := make([]string, len(descs))
	for i, d := range descs {
		parts[i] = d.Spoken()
	}
	return strings.Join(parts, ". ")
}

// HasNear reports whether any description is in the near tier.
func HasNear(descs []Description) bool {
	for _, d := range descs {
		if d.Proximity == perception.ProximityNear {
			return true
		}
	}
	return false
}

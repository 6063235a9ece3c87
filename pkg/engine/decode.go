package engine

import (
	"fmt"

	"github.com/teslashibe/go-sightline/pkg/depth"
	"github.com/teslashibe/go-sightline/pkg/perception"
)

// Candidate is a raw detector box in model-input pixels, before NMS.
type Candidate struct {
	X1, Y1, X2, Y2 float64
	Score          float32
	ClassID        int
}

// DecodeYOLOv8 reads a [1, 4+classes, anchors] YOLOv8 output tensor, laid out
// attribute-major, and returns every anchor whose best class score reaches
// threshold.
func DecodeYOLOv8(data []float32, attrs, anchors int, threshold float32) ([]Candidate, error) {
	if attrs <= 4 || anchors <= 0 {
		return nil, fmt.Errorf("%w: shape [1,%d,%d]", ErrBadOutput, attrs, anchors)
	}
	if len(data) < attrs*anchors {
		return nil, fmt.Errorf("%w: %d values for [1,%d,%d]", ErrBadOutput, len(data), attrs, anchors)
	}

	var out []Candidate
	for i := 0; i < anchors; i++ {
		best := float32(0)
		cls := -1
		for c := 4; c < attrs; c++ {
			if s := data[c*anchors+i]; s > best {
				best = s
				cls = c - 4
			}
		}
		if cls < 0 || best < threshold {
			continue
		}

		cx := float64(data[0*anchors+i])
		cy := float64(data[1*anchors+i])
		w := float64(data[2*anchors+i])
		h := float64(data[3*anchors+i])
		out = append(out, Candidate{
			X1:      cx - w/2,
			Y1:      cy - h/2,
			X2:      cx + w/2,
			Y2:      cy + h/2,
			Score:   best,
			ClassID: cls,
		})
	}
	return out, nil
}

// ToDetections maps kept candidates back into original-frame coordinates.
// Boxes that collapse after undoing the letterbox are dropped.
func ToDetections(cands []Candidate, lb perception.Letterbox) []perception.Detection {
	out := make([]perception.Detection, 0, len(cands))
	for _, c := range cands {
		box, ok := lb.Undo(c.X1, c.Y1, c.X2, c.Y2)
		if !ok {
			continue
		}
		out = append(out, perception.Detection{
			ClassID:    c.ClassID,
			Label:      perception.Label(c.ClassID),
			Confidence: float64(c.Score),
			Box:        box,
			Proximity:  perception.ProximityUnknown,
		})
	}
	return perception.FilterValid(out)
}

// NormalizeDepth min-max scales a relative inverse-depth map (larger is
// nearer) into a closeness surface. A flat map becomes all zeros.
func NormalizeDepth(values []float32, width, height int) (*depth.Surface, error) {
	if width <= 0 || height <= 0 || len(values) < width*height {
		return nil, fmt.Errorf("%w: %d values for %dx%d depth map", ErrBadOutput, len(values), width, height)
	}
	values = values[:width*height]

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	out := make([]byte, len(values))
	if span := hi - lo; span > 0 {
		for i, v := range values {
			out[i] = uint8((v - lo) / span * 255)
		}
	}
	return depth.NewSurface(width, height, out)
}

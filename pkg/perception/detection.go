package perception

import "image"

// Box is an axis-aligned rectangle in normalized frame coordinates (0-1).
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Valid reports whether the box is non-degenerate and inside the frame.
func (b Box) Valid() bool {
	return b.Right > b.Left && b.Bottom > b.Top &&
		b.Left >= 0 && b.Top >= 0 && b.Right <= 1 && b.Bottom <= 1
}

// Center returns the center point of the box.
func (b Box) Center() (x, y float64) {
	return (b.Left + b.Right) / 2, (b.Top + b.Bottom) / 2
}

// Width returns the normalized width.
func (b Box) Width() float64 {
	return b.Right - b.Left
}

// Height returns the normalized height.
func (b Box) Height() float64 {
	return b.Bottom - b.Top
}

// Clamp limits every edge to [0,1].
func (b Box) Clamp() Box {
	return Box{
		Left:   clamp01(b.Left),
		Top:    clamp01(b.Top),
		Right:  clamp01(b.Right),
		Bottom: clamp01(b.Bottom),
	}
}

// Detection is one object found in a frame.
type Detection struct {
	ClassID    int       `json:"class_id"`
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Box        Box       `json:"box"`
	Proximity  Proximity `json:"proximity"`
}

// WithProximity returns a copy of d with the proximity tier replaced.
func (d Detection) WithProximity(p Proximity) Detection {
	d.Proximity = p
	return d
}

// Letterbox describes the resize-and-pad transform applied to a source image
// before it is fed to a square model input.
type Letterbox struct {
	SrcWidth, SrcHeight int
	Scale               float64 // model pixels per source pixel
	PadX, PadY          int     // padding added on the left and top
}

// NewLetterbox computes the aspect-preserving fit of src into dst.
func NewLetterbox(srcW, srcH, dstW, dstH int) Letterbox {
	if srcW <= 0 || srcH <= 0 {
		return Letterbox{SrcWidth: srcW, SrcHeight: srcH, Scale: 1}
	}
	scale := min(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))
	newW := int(float64(srcW) * scale)
	newH := int(float64(srcH) * scale)
	return Letterbox{
		SrcWidth:  srcW,
		SrcHeight: srcH,
		Scale:     scale,
		PadX:      (dstW - newW) / 2,
		PadY:      (dstH - newH) / 2,
	}
}

// ScaledSize is the size of the source after scaling, before padding.
func (l Letterbox) ScaledSize() image.Point {
	return image.Pt(int(float64(l.SrcWidth)*l.Scale), int(float64(l.SrcHeight)*l.Scale))
}

// Undo maps a rectangle given in model-input pixels back to a normalized box
// in the original frame. Boxes that end up degenerate are rejected.
func (l Letterbox) Undo(x1, y1, x2, y2 float64) (Box, bool) {
	if l.Scale <= 0 || l.SrcWidth <= 0 || l.SrcHeight <= 0 {
		return Box{}, false
	}
	w := float64(l.SrcWidth)
	h := float64(l.SrcHeight)
	b := Box{
		Left:   (x1 - float64(l.PadX)) / l.Scale / w,
		Top:    (y1 - float64(l.PadY)) / l.Scale / h,
		Right:  (x2 - float64(l.PadX)) / l.Scale / w,
		Bottom: (y2 - float64(l.PadY)) / l.Scale / h,
	}.Clamp()
	if !b.Valid() {
		return Box{}, false
	}
	return b, true
}

// FilterValid drops detections whose boxes are degenerate or out of range.
func FilterValid(dets []Detection) []Detection {
	out := dets[:0:0]
	for _, d := range dets {
		if d.Box.Valid() && d.Confidence >= 0 && d.Confidence <= 1 {
			out = append(out, d)
		}
	}
	return out
}

// FilterConfidence keeps detections at or above the threshold.
func FilterConfidence(dets []Detection, threshold float64) []Detection {
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence >= threshold {
			out = append(out, d)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Package frame distributes camera frames to perception lanes.
//
// Each lane owns a single-slot, latest-wins Buffer. Publishing overwrites any
// frame the lane has not consumed yet, so a slow lane never stalls the camera
// and never accumulates a backlog; it simply sees fewer, fresher frames.
package frame

import "time"

// Frame is one captured image. It is shared by every lane and must not be
// modified after it has been published.
type Frame struct {
	// Seq is assigned by the Distributor on publish (monotonic).
	Seq uint64

	// Data is the JPEG-encoded image.
	Data []byte

	// Width and Height of the encoded image in pixels (0 if unknown).
	Width  int
	Height int

	// Rotation in degrees clockwise that must be applied before inference
	// (0, 90, 180 or 270).
	Rotation int

	// CapturedAt is the capture timestamp reported by the source.
	CapturedAt time.Time
}

// New creates a frame captured now.
func New(data []byte, width, height, rotation int) *Frame {
	return &Frame{
		Data:       data,
		Width:      width,
		Height:     height,
		Rotation:   normalizeRotation(rotation),
		CapturedAt: time.Now(),
	}
}

// Age returns how long ago the frame was captured.
func (f *Frame) Age() time.Duration {
	return time.Since(f.CapturedAt)
}

func normalizeRotation(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	// Snap to the nearest quarter turn.
	return ((deg + 45) / 90 % 4) * 90
}

// Publisher accepts frames from a source.
type Publisher interface {
	Publish(f *Frame)
}

// Package depth samples closeness surfaces produced by the depth lane.
//
// A Surface stores one byte per pixel, row-major, where 255 is nearest and 0
// is farthest. Region queries read every Stride-th row and column, trading
// precision for a bounded per-query cost: a 256×256 surface costs at most
// 64×64 reads for a full-frame query at the default stride of 4.
package depth

import (
	"errors"
	"fmt"
)

// DefaultStride is the row/column step used by region sampling.
const DefaultStride = 4

// ErrInvalidSurface is returned when dimensions and data do not agree.
var ErrInvalidSurface = errors.New("depth: invalid surface")

// Surface is an immutable closeness grid.
type Surface struct {
	Width     int
	Height    int
	Closeness []byte
}

// NewSurface validates and wraps a closeness grid. The slice is retained and
// must not be modified afterwards.
func NewSurface(width, height int, closeness []byte) (*Surface, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrInvalidSurface, width, height)
	}
	if len(closeness) != width*height {
		return nil, fmt.Errorf("%w: have %d values for %dx%d", ErrInvalidSurface, len(closeness), width, height)
	}
	return &Surface{Width: width, Height: height, Closeness: closeness}, nil
}

// At returns the closeness at pixel (x, y) and whether the index was valid.
func (s *Surface) At(x, y int) (uint8, bool) {
	if s == nil || x < 0 || y < 0 || x >= s.Width || y >= s.Height {
		return 0, false
	}
	i := y*s.Width + x
	if i >= len(s.Closeness) {
		return 0, false
	}
	return s.Closeness[i], true
}

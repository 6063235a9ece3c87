package depth

import (
	"github.com/teslashibe/go-sightline/pkg/perception"
)

// Mode selects how a region is reduced to one closeness value.
type Mode int

const (
	// ModeMax keeps the nearest sample. Used for obstacle warnings.
	ModeMax Mode = iota
	// ModeAverage smooths the region. Used for per-zone readouts.
	ModeAverage
)

// Sampler reads closeness values from surfaces.
type Sampler struct {
	stride int
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithStride sets the sampling step. Values below 1 are treated as 1.
func WithStride(n int) Option {
	return func(s *Sampler) {
		s.stride = max(n, 1)
	}
}

// NewSampler creates a sampler with the default stride.
func NewSampler(opts ...Option) *Sampler {
	s := &Sampler{stride: DefaultStride}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Stride returns the configured sampling step.
func (s *Sampler) Stride() int {
	return s.stride
}

// MaxInRegion returns the highest closeness inside the normalized region.
func (s *Sampler) MaxInRegion(surf *Surface, region perception.Box) uint8 {
	var best uint8
	s.walk(surf, region, func(v uint8) {
		if v > best {
			best = v
		}
	})
	return best
}

// AverageInRegion returns the mean closeness inside the normalized region.
func (s *Sampler) AverageInRegion(surf *Surface, region perception.Box) uint8 {
	var sum, n int
	s.walk(surf, region, func(v uint8) {
		sum += int(v)
		n++
	})
	if n == 0 {
		return 0
	}
	return uint8(sum / n)
}

// SamplePoint reads the closeness at a normalized coordinate.
func (s *Sampler) SamplePoint(surf *Surface, x, y float64) uint8 {
	if surf == nil {
		return 0
	}
	v, _ := surf.At(toPixel(x, surf.Width), toPixel(y, surf.Height))
	return v
}

// SampleZone reduces one navigation zone using mode.
func (s *Sampler) SampleZone(surf *Surface, zone perception.NavigationZone, mode Mode) perception.ZoneReading {
	var c uint8
	if mode == ModeAverage {
		c = s.AverageInRegion(surf, zone.Rect())
	} else {
		c = s.MaxInRegion(surf, zone.Rect())
	}
	return perception.ZoneReading{Zone: zone, Closeness: c, Proximity: perception.Classify(c)}
}

// SampleZones reads all nine zones in enumeration order.
func (s *Sampler) SampleZones(surf *Surface, mode Mode) []perception.ZoneReading {
	out := make([]perception.ZoneReading, 0, len(perception.Zones))
	for _, z := range perception.Zones {
		out = append(out, s.SampleZone(surf, z, mode))
	}
	return out
}

// Enrich returns d with its proximity derived from the nearest sample in its
// bounding box. A nil surface leaves d unchanged.
func (s *Sampler) Enrich(d perception.Detection, surf *Surface) perception.Detection {
	if surf == nil {
		return d
	}
	return d.WithProximity(perception.Classify(s.MaxInRegion(surf, d.Box)))
}

// EnrichAll applies Enrich to every detection, returning a new slice.
func (s *Sampler) EnrichAll(dets []perception.Detection, surf *Surface) []perception.Detection {
	out := make([]perception.Detection, len(dets))
	for i, d := range dets {
		out[i] = s.Enrich(d, surf)
	}
	return out
}

// walk visits sampled pixels inside region. Coordinates are clamped into the
// surface; indices that still fall outside are skipped.
func (s *Sampler) walk(surf *Surface, region perception.Box, visit func(uint8)) {
	if surf == nil || surf.Width <= 0 || surf.Height <= 0 {
		return
	}
	x0, x1 := toPixel(region.Left, surf.Width), toPixel(region.Right, surf.Width)
	y0, y1 := toPixel(region.Top, surf.Height), toPixel(region.Bottom, surf.Height)
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y += s.stride {
		for x := x0; x <= x1; x += s.stride {
			if v, ok := surf.At(x, y); ok {
				visit(v)
			}
		}
	}
}

func toPixel(v float64, size int) int {
	p := int(v * float64(size))
	if p < 0 {
		return 0
	}
	if p > size-1 {
		return size - 1
	}
	return p
}

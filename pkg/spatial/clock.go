// Package spatial turns detections and depth zones into spoken directions.
package spatial

import "strconv"

// ClockPosition is a horizontal bearing relative to straight ahead (12).
type ClockPosition int

// Clock positions from far left to far right.
const (
	Clock9  ClockPosition = 9
	Clock10 ClockPosition = 10
	Clock11 ClockPosition = 11
	Clock12 ClockPosition = 12
	Clock1  ClockPosition = 1
	Clock2  ClockPosition = 2
	Clock3  ClockPosition = 3
)

// Bucket edges. The 12 o'clock band is deliberately narrow and sits just
// right of centre.
var clockEdges = [...]struct {
	below float64
	pos   ClockPosition
}{
	{0.17, Clock9},
	{0.33, Clock10},
	{0.50, Clock11},
	{0.55, Clock12},
	{0.67, Clock1},
	{0.83, Clock2},
}

// ClockPositionAt maps a normalized horizontal coordinate to a bearing.
func ClockPositionAt(x float64) ClockPosition {
	for _, e := range clockEdges {
		if x < e.below {
			return e.pos
		}
	}
	return Clock3
}

func (c ClockPosition) String() string {
	return strconv.Itoa(int(c)) + " o'clock"
}

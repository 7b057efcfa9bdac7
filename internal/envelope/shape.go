package envelope

import (
	"fmt"
	"math"
)

// Shape selects the trajectory an envelope follows over its duration.
type Shape int

const (
	// TriangularUpDown ramps linearly from base to target over the first
	// half of the duration and back to base over the second half.
	TriangularUpDown Shape = iota
	// LinearDecay jumps to target on trigger and fades linearly to base.
	LinearDecay
	// SlerpRotation spherically interpolates from the rotation captured at
	// trigger time toward that rotation composed with an offset.
	SlerpRotation
)

// String returns the configuration name of the shape.
func (s Shape) String() string {
	switch s {
	case TriangularUpDown:
		return "triangular"
	case LinearDecay:
		return "linear_decay"
	case SlerpRotation:
		return "slerp_rotation"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// ParseShape maps a configuration name back to a Shape.
func ParseShape(name string) (Shape, error) {
	switch name {
	case "triangular":
		return TriangularUpDown, nil
	case "linear_decay":
		return LinearDecay, nil
	case "slerp_rotation":
		return SlerpRotation, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownShape, name)
}

// Triangular returns the up-down ratio in [0,1] at fraction p of the
// duration: 2p for p <= 0.5, then 2(1-p).
func Triangular(p float64) float64 {
	p = clamp01(p)
	if p <= 0.5 {
		return 2 * p
	}
	return 2 * (1 - p)
}

// Decay returns 1-p clamped to [0,1].
func Decay(p float64) float64 {
	return clamp01(1 - p)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

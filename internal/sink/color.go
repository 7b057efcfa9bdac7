package sink

import "math"

// RGBA is a colour with components in [0,1].
type RGBA struct {
	R, G, B, A float64
}

// HSV converts hue, saturation and value in [0,1] to an opaque RGBA. Inputs
// outside the range are clamped, except hue which wraps.
func HSV(h, s, v float64) RGBA {
	if math.IsNaN(h) || math.IsInf(h, 0) {
		h = 0
	}
	h = h - math.Floor(h)
	s = clampUnit(s)
	v = clampUnit(v)

	if s == 0 {
		return RGBA{R: v, G: v, B: v, A: 1}
	}

	h6 := h * 6
	sector := math.Floor(h6)
	f := h6 - sector
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	switch int(sector) % 6 {
	case 0:
		return RGBA{R: v, G: t, B: p, A: 1}
	case 1:
		return RGBA{R: q, G: v, B: p, A: 1}
	case 2:
		return RGBA{R: p, G: v, B: t, A: 1}
	case 3:
		return RGBA{R: p, G: q, B: v, A: 1}
	case 4:
		return RGBA{R: t, G: p, B: v, A: 1}
	default:
		return RGBA{R: v, G: p, B: q, A: 1}
	}
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

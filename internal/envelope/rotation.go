package envelope

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Identity is the rotation that leaves an object unchanged.
var Identity = quat.Number{Real: 1}

// YawDegrees returns a unit quaternion rotating deg degrees about the
// vertical (Y) axis, matching the host's Y-up convention.
func YawDegrees(deg float64) quat.Number {
	half := deg * math.Pi / 360
	return quat.Number{Real: math.Cos(half), Jmag: math.Sin(half)}
}

// Yaw extracts the rotation about the vertical axis in degrees, in (-180, 180].
func Yaw(q quat.Number) float64 {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	rad := math.Atan2(2*(w*y+x*z), 1-2*(x*x+y*y))
	return rad * 180 / math.Pi
}

// Normalize scales q to unit length. The zero quaternion maps to Identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 || math.IsNaN(n) {
		return Identity
	}
	return quat.Scale(1/n, q)
}

// Slerp interpolates between unit quaternions a and b along the shortest
// arc. t is clamped to [0,1].
func Slerp(a, b quat.Number, t float64) quat.Number {
	t = clamp01(t)
	a, b = Normalize(a), Normalize(b)

	dot := a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
	if dot < 0 {
		b = quat.Scale(-1, b)
		dot = -dot
	}

	// Nearly parallel: fall back to normalised lerp to avoid dividing by
	// a vanishing sine.
	if dot > 0.9995 {
		return Normalize(quat.Add(a, quat.Scale(t, quat.Sub(b, a))))
	}

	theta0 := math.Acos(dot)
	theta := theta0 * t
	sin0 := math.Sin(theta0)
	s0 := math.Cos(theta) - dot*math.Sin(theta)/sin0
	s1 := math.Sin(theta) / sin0
	return Normalize(quat.Add(quat.Scale(s0, a), quat.Scale(s1, b)))
}

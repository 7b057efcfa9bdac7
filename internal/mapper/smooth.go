package mapper

import (
	"time"

	"github.com/banshee-data/glovestage/internal/sink"
)

// Damper eases a value toward a target using a critically damped spring.
// SmoothTime is roughly how long the value takes to reach the target.
type Damper struct {
	SmoothTime time.Duration
	Value      float64
	Target     float64
	velocity   float64
}

// Step moves Value toward Target by dt and returns it. It never overshoots
// the target.
func (d *Damper) Step(dt time.Duration) float64 {
	if d.SmoothTime <= 0 {
		d.Value, d.velocity = d.Target, 0
		return d.Value
	}
	secs := dt.Seconds()
	if secs <= 0 {
		return d.Value
	}
	omega := 2 / d.SmoothTime.Seconds()
	x := omega * secs
	exp := 1 / (1 + x + 0.48*x*x + 0.235*x*x*x)

	change := d.Value - d.Target
	temp := (d.velocity + omega*change) * secs
	d.velocity = (d.velocity - omega*temp) * exp
	out := d.Target + (change+temp)*exp

	// Landing past the target clamps to it and stops.
	if (d.Target-d.Value > 0) == (out > d.Target) {
		out = d.Target
		d.velocity = 0
	}
	d.Value = out
	return out
}

// LerpColor moves from a toward b by t in [0,1], channel by channel.
func LerpColor(a, b sink.RGBA, t float64) sink.RGBA {
	mix := func(x, y float64) float64 { return x + (y-x)*t }
	return sink.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: mix(a.A, b.A)}
}

// Package envelope implements triggered, time-bounded parameter trajectories.
//
// An Envelope is configured once and armed repeatedly. Trigger starts it
// unless it is already running, in which case the trigger is coalesced into
// the run in flight. Advance is called once per render tick with the tick's
// delta; when elapsed time reaches the duration the envelope returns to idle
// in the same step and, if chained, arms its successor.
//
// Envelopes are not safe for concurrent use. They are owned by the render
// loop.
package envelope

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/num/quat"
)

// Config describes a dormant envelope.
type Config struct {
	Duration time.Duration
	Shape    Shape

	// Base is the resting value and Target the extreme reached by the
	// triangular peak or the decay's initial jump.
	Base   float64
	Target float64

	// RotationOffset is composed onto the captured base rotation to form
	// the slerp destination. Only used by SlerpRotation.
	RotationOffset quat.Number
}

// RotationSource reports an object's current rotation. Slerp envelopes read
// it once per trigger.
type RotationSource func() quat.Number

// Sample is an envelope output.
type Sample struct {
	Value    float64
	Rotation quat.Number
	// Running reports whether the envelope is still in flight after the
	// step that produced this sample.
	Running bool
	// Done is set only on the step that completed the envelope.
	Done bool
}

// Envelope is one timed animation.
type Envelope struct {
	cfg     Config
	rotSrc  RotationSource
	next    *Envelope
	running bool
	elapsed time.Duration
	base    quat.Number
	armed   uint64
}

// New validates cfg and returns an idle envelope.
func New(cfg Config) (*Envelope, error) {
	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDuration, cfg.Duration)
	}
	switch cfg.Shape {
	case TriangularUpDown, LinearDecay, SlerpRotation:
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownShape, cfg.Shape)
	}
	if cfg.RotationOffset == (quat.Number{}) {
		cfg.RotationOffset = Identity
	}
	return &Envelope{cfg: cfg, base: Identity}, nil
}

// MustNew is New for configurations known to be valid. It panics otherwise.
func MustNew(cfg Config) *Envelope {
	e, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return e
}

// WithRotationSource sets where a slerp envelope captures its base rotation.
// Without a source the base is Identity.
func (e *Envelope) WithRotationSource(src RotationSource) *Envelope {
	e.rotSrc = src
	return e
}

// Chain arms next whenever e completes.
func (e *Envelope) Chain(next *Envelope) *Envelope {
	e.next = next
	return e
}

// Config returns the envelope's configuration.
func (e *Envelope) Config() Config { return e.cfg }

// Running reports whether the envelope is in flight.
func (e *Envelope) Running() bool { return e.running }

// Elapsed returns time since the current run started, or 0 when idle.
func (e *Envelope) Elapsed() time.Duration { return e.elapsed }

// Origin returns the base rotation captured by the current or most recent
// slerp run. It is Identity for other shapes.
func (e *Envelope) Origin() quat.Number { return e.base }

// Armed returns how many triggers actually started a run.
func (e *Envelope) Armed() uint64 { return e.armed }

// Trigger starts the envelope and reports true, or reports false without
// touching any state when it is already running.
func (e *Envelope) Trigger() bool {
	if e.running {
		return false
	}
	e.running = true
	e.elapsed = 0
	e.armed++
	if e.cfg.Shape == SlerpRotation {
		e.base = Identity
		if e.rotSrc != nil {
			e.base = Normalize(e.rotSrc())
		}
	}
	return true
}

// Advance moves a running envelope forward by dt and returns its output.
// On an idle envelope it returns the resting sample and changes nothing.
func (e *Envelope) Advance(dt time.Duration) Sample {
	if !e.running {
		return e.Sample()
	}
	if dt < 0 {
		dt = 0
	}
	e.elapsed += dt
	if e.elapsed >= e.cfg.Duration {
		e.running = false
		e.elapsed = 0
		s := e.endSample()
		s.Done = true
		if e.next != nil {
			e.next.Trigger()
		}
		return s
	}
	return e.Sample()
}

// Sample returns the output at the current elapsed time without advancing.
func (e *Envelope) Sample() Sample {
	if !e.running {
		return e.restSample()
	}
	p := float64(e.elapsed) / float64(e.cfg.Duration)
	s := Sample{Running: true}
	switch e.cfg.Shape {
	case TriangularUpDown:
		s.Value = e.lerp(Triangular(p))
	case LinearDecay:
		s.Value = e.lerp(Decay(p))
	case SlerpRotation:
		s.Value = clamp01(p)
		s.Rotation = Slerp(e.base, e.destination(), p)
	}
	return s
}

func (e *Envelope) lerp(r float64) float64 {
	return e.cfg.Base + (e.cfg.Target-e.cfg.Base)*r
}

func (e *Envelope) destination() quat.Number {
	return Normalize(quat.Mul(e.base, e.cfg.RotationOffset))
}

// endSample is the value reached exactly at the duration.
func (e *Envelope) endSample() Sample {
	if e.cfg.Shape == SlerpRotation {
		return Sample{Value: 1, Rotation: e.destination()}
	}
	return Sample{Value: e.cfg.Base}
}

func (e *Envelope) restSample() Sample {
	if e.cfg.Shape == SlerpRotation {
		return Sample{Value: 0, Rotation: e.base}
	}
	return Sample{Value: e.cfg.Base}
}

// Trajectory samples a fresh copy of the envelope from trigger to completion
// at step dt, without touching e. It backs the debug charts and plots.
func (e *Envelope) Trajectory(dt time.Duration) []float64 {
	if dt <= 0 {
		return nil
	}
	c := &Envelope{cfg: e.cfg, base: Identity}
	c.Trigger()
	out := []float64{c.Sample().Value}
	for c.running {
		out = append(out, c.Advance(dt).Value)
	}
	return out
}

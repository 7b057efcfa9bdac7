// Package responsive composes envelope rigs with sink handles. An Object is
// the stage-side half of one visual object on the host: it owns that
// object's envelopes, its current rotation and its continuous fade input,
// and writes the resulting parameters to the sink every tick.
package responsive

import (
	"math"
	"time"

	"gonum.org/v1/gonum/num/quat"

	"github.com/banshee-data/glovestage/internal/envelope"
	"github.com/banshee-data/glovestage/internal/sink"
)

// Object is driven only from the render loop.
type Object struct {
	id  sink.ObjectID
	out sink.Sink
	rig *envelope.Rig

	baseScale float64
	spin      float64 // degrees per second
	rotation  quat.Number
	fadeInput float64

	scale float64
	alpha float64

	// lastRot is the previous sample of each running slerp envelope, so
	// every tick applies only that envelope's increment.
	lastRot map[envelope.Kind]quat.Number

	written      map[string]float64
	refreshEvery int
	ticks        int
}

// New returns an object with no envelopes, unit scale and full alpha.
func New(id sink.ObjectID, out sink.Sink) *Object {
	if out == nil {
		out = sink.Discard{}
	}
	return &Object{
		id:        id,
		out:       out,
		rig:       envelope.NewRig(),
		baseScale: 1,
		rotation:  envelope.Identity,
		fadeInput: 1,
		scale:     1,
		alpha:     1,
		lastRot:   make(map[envelope.Kind]quat.Number),
		written:   make(map[string]float64),
	}
}

// ID returns the host identity of the object.
func (o *Object) ID() sink.ObjectID { return o.id }

// WithBaseScale sets the scale the envelopes multiply.
func (o *Object) WithBaseScale(s float64) *Object {
	o.baseScale = s
	o.scale = s
	return o
}

// WithSpin sets an idle yaw rotation in degrees per second.
func (o *Object) WithSpin(degPerSec float64) *Object {
	o.spin = degPerSec
	return o
}

// WithRefresh rewrites every parameter once per n ticks even when it has
// not changed, so a host that lost a datagram catches up. n <= 0 writes
// changes only.
func (o *Object) WithRefresh(n int) *Object {
	o.refreshEvery = n
	return o
}

// Add installs e under kind. Slerp envelopes capture the object's current
// rotation as their base on every trigger.
func (o *Object) Add(kind envelope.Kind, e *envelope.Envelope) *Object {
	if e.Config().Shape == envelope.SlerpRotation {
		e.WithRotationSource(o.Rotation)
	}
	o.rig.Add(kind, e)
	return o
}

// Chain arms the to envelope whenever from completes. Both must be installed.
func (o *Object) Chain(from, to envelope.Kind) *Object {
	if f, t := o.rig.Get(from), o.rig.Get(to); f != nil && t != nil {
		f.Chain(t)
	}
	return o
}

// Has reports whether an envelope of kind is installed.
func (o *Object) Has(kind envelope.Kind) bool { return o.rig.Get(kind) != nil }

// Running reports whether the envelope of kind is in flight.
func (o *Object) Running(kind envelope.Kind) bool { return o.rig.Running(kind) }

// Arm triggers each installed envelope in kinds and reports every one that
// started a run to the sink. It returns true if any started.
func (o *Object) Arm(kinds ...envelope.Kind) bool {
	armed := false
	for _, k := range kinds {
		e := o.rig.Get(k)
		if e == nil || !e.Trigger() {
			continue
		}
		o.out.ArmEnvelope(o.id, string(k))
		armed = true
	}
	return armed
}

// Rotation returns the object's current rotation.
func (o *Object) Rotation() quat.Number { return o.rotation }

// SetFadeInput sets the alpha used while no fade envelope is running.
func (o *Object) SetFadeInput(v float64) {
	if math.IsNaN(v) {
		v = 0
	}
	o.fadeInput = math.Max(0, math.Min(1, v))
}

// SetColor forwards a colour for this object.
func (o *Object) SetColor(c sink.RGBA) { o.out.SetColor(o.id, c) }

// SetParam forwards a continuous parameter for this object.
func (o *Object) SetParam(name string, v float64) { o.out.SetContinuousParam(o.id, name, v) }

// Advance applies idle spin, steps every running envelope and writes the
// scale, yaw and alpha parameters that changed since the last write.
func (o *Object) Advance(dt time.Duration) {
	o.ticks++
	if o.refreshEvery > 0 && o.ticks%o.refreshEvery == 0 {
		clear(o.written)
	}
	if o.spin != 0 && dt > 0 {
		step := envelope.YawDegrees(o.spin * dt.Seconds())
		o.rotation = envelope.Normalize(quat.Mul(o.rotation, step))
	}

	scale := o.baseScale
	alpha := o.fadeInput
	for _, r := range o.rig.Advance(dt) {
		switch {
		case r.Kind == envelope.KindFade:
			if r.Sample.Running {
				alpha = r.Sample.Value
			}
		case o.rig.Get(r.Kind).Config().Shape == envelope.SlerpRotation:
			o.applyRotation(r.Kind, r.Sample)
		default:
			scale *= r.Sample.Value
		}
	}
	o.scale = scale
	o.alpha = alpha

	o.write(sink.ParamScale, scale)
	o.write(sink.ParamRotationYaw, envelope.Yaw(o.rotation))
	o.write(sink.ParamAlpha, alpha)
}

// applyRotation composes the step a slerp envelope made since its last
// sample onto the object's rotation. Over a whole run the increments add up
// to the envelope's offset, so overlapping slerps and idle spin accumulate
// instead of overwriting each other.
func (o *Object) applyRotation(kind envelope.Kind, s envelope.Sample) {
	prev, ok := o.lastRot[kind]
	if !ok {
		prev = o.rig.Get(kind).Origin()
	}
	delta := quat.Mul(quat.Conj(prev), s.Rotation)
	o.rotation = envelope.Normalize(quat.Mul(o.rotation, delta))
	if s.Done {
		delete(o.lastRot, kind)
		return
	}
	o.lastRot[kind] = s.Rotation
}

func (o *Object) write(name string, v float64) {
	if prev, ok := o.written[name]; ok && prev == v {
		return
	}
	o.written[name] = v
	o.out.SetContinuousParam(o.id, name, v)
}

// State is a point-in-time view of an object for the debug page.
type State struct {
	ID          string   `json:"id"`
	Scale       float64  `json:"scale"`
	RotationYaw float64  `json:"rotation_yaw"`
	Alpha       float64  `json:"alpha"`
	Running     []string `json:"running,omitempty"`
}

// State returns the object's current outputs.
func (o *Object) State() State {
	st := State{
		ID:          string(o.id),
		Scale:       o.scale,
		RotationYaw: envelope.Yaw(o.rotation),
		Alpha:       o.alpha,
	}
	for _, k := range o.rig.Kinds() {
		if o.rig.Running(k) {
			st.Running = append(st.Running, string(k))
		}
	}
	return st
}

// Envelopes returns the installed envelopes keyed by kind, in rig order.
func (o *Object) Envelopes() []Slot {
	kinds := o.rig.Kinds()
	out := make([]Slot, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, Slot{Kind: k, Envelope: o.rig.Get(k)})
	}
	return out
}

// Slot is one installed envelope.
type Slot struct {
	Kind     envelope.Kind
	Envelope *envelope.Envelope
}

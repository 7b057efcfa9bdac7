package envelope

import "time"

// Kind names an effect slot on a responsive object.
type Kind string

const (
	KindScale    Kind = "scale"
	KindRotation Kind = "rotation"
	KindFade     Kind = "fade"
	KindKick     Kind = "kick"
	KindHiHat    Kind = "hihat"
)

// Result pairs an advanced envelope's kind with its output.
type Result struct {
	Kind   Kind
	Sample Sample
}

// Rig is the ordered set of named envelopes owned by one object. Envelopes
// advance in the order they were added, so a successor chained from an
// earlier slot starts moving on the same tick it is armed.
type Rig struct {
	order []Kind
	envs  map[Kind]*Envelope
	buf   []Result
}

// NewRig returns an empty rig.
func NewRig() *Rig {
	return &Rig{envs: make(map[Kind]*Envelope)}
}

// Add installs e under k, replacing any previous envelope of that kind while
// keeping its position.
func (r *Rig) Add(k Kind, e *Envelope) *Rig {
	if _, exists := r.envs[k]; !exists {
		r.order = append(r.order, k)
	}
	r.envs[k] = e
	return r
}

// Get returns the envelope for k, or nil.
func (r *Rig) Get(k Kind) *Envelope {
	return r.envs[k]
}

// Kinds returns the installed kinds in advance order.
func (r *Rig) Kinds() []Kind {
	return append([]Kind(nil), r.order...)
}

// Trigger arms each named envelope that is present and reports whether any
// of them started a new run.
func (r *Rig) Trigger(kinds ...Kind) bool {
	armed := false
	for _, k := range kinds {
		if e := r.envs[k]; e != nil && e.Trigger() {
			armed = true
		}
	}
	return armed
}

// Running reports whether the envelope for k is in flight.
func (r *Rig) Running(k Kind) bool {
	e := r.envs[k]
	return e != nil && e.Running()
}

// Advance steps every running envelope once by dt and returns their outputs
// in rig order. The returned slice is reused by the next call.
func (r *Rig) Advance(dt time.Duration) []Result {
	r.buf = r.buf[:0]
	for _, k := range r.order {
		e := r.envs[k]
		if !e.Running() {
			continue
		}
		r.buf = append(r.buf, Result{Kind: k, Sample: e.Advance(dt)})
	}
	return r.buf
}

package particles

import "github.com/banshee-data/glovestage/internal/sink"

// SinkField is a ForceField living on the host, addressed through a sink.
// The host never reports values back, so the field remembers what it last
// wrote.
type SinkField struct {
	out        sink.Sink
	id         sink.ObjectID
	gravity    float64
	attraction float64
}

// NewSinkField returns a field whose initial scalars match the host scene.
func NewSinkField(out sink.Sink, id sink.ObjectID, gravity, attraction float64) *SinkField {
	return &SinkField{out: out, id: id, gravity: gravity, attraction: attraction}
}

// Gravity returns the gravity last written.
func (f *SinkField) Gravity() float64 { return f.gravity }

// Attraction returns the attraction last written.
func (f *SinkField) Attraction() float64 { return f.attraction }

// SetGravity writes the gravity scalar to the host field.
func (f *SinkField) SetGravity(v float64) {
	f.gravity = v
	f.out.SetContinuousParam(f.id, sink.ParamGravity, v)
}

// SetAttraction writes the attraction scalar to the host field.
func (f *SinkField) SetAttraction(v float64) {
	f.attraction = v
	f.out.SetContinuousParam(f.id, sink.ParamAttraction, v)
}

// SinkSystem forwards velocity scaling to the host particle system. Each
// velocity_multiplier write is a one-shot multiply, not a persistent value.
type SinkSystem struct {
	out sink.Sink
	id  sink.ObjectID
}

// NewSinkSystem returns a System addressing id.
func NewSinkSystem(out sink.Sink, id sink.ObjectID) *SinkSystem {
	return &SinkSystem{out: out, id: id}
}

// ScaleVelocities asks the host to multiply every live particle velocity by f.
func (s *SinkSystem) ScaleVelocities(f float64) {
	s.out.SetContinuousParam(s.id, sink.ParamVelocityMultiplier, f)
}

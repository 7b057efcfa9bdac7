// Package sink defines the write-only surface the stage drives on the
// external visualization host, plus transports and test doubles for it.
package sink

// ObjectID identifies a responsive object on the host. The host assigns the
// identities; the stage never queries scene topology.
type ObjectID string

// Sink receives every visual update the stage produces. All calls are made
// from the render loop goroutine. Implementations must not block it.
type Sink interface {
	SetColor(id ObjectID, c RGBA)
	SetContinuousParam(id ObjectID, name string, v float64)
	ArmEnvelope(id ObjectID, kind string)
	SetCameraOrbit(angle float64)
	SetCameraHeight(v float64)
	SetCameraZoom(v float64)
	SetGlobalTimeScale(v float64)
}

// Continuous parameter names written by the stage.
const (
	ParamScale              = "scale"
	ParamRotationYaw        = "rotation_yaw"
	ParamAlpha              = "alpha"
	ParamNoiseAmount        = "noise_amount"
	ParamFadeInput          = "fade_input"
	ParamBandLevel          = "band_level"
	ParamHue                = "hue"
	ParamGravity            = "gravity"
	ParamAttraction         = "attraction"
	ParamVelocityMultiplier = "velocity_multiplier"
)

// Discard is a Sink that drops every update.
type Discard struct{}

// SetColor drops the update.
func (Discard) SetColor(ObjectID, RGBA) {}

// SetContinuousParam drops the update.
func (Discard) SetContinuousParam(ObjectID, string, float64) {}

// ArmEnvelope drops the update.
func (Discard) ArmEnvelope(ObjectID, string) {}

// SetCameraOrbit drops the update.
func (Discard) SetCameraOrbit(float64) {}

// SetCameraHeight drops the update.
func (Discard) SetCameraHeight(float64) {}

// SetCameraZoom drops the update.
func (Discard) SetCameraZoom(float64) {}

// SetGlobalTimeScale drops the update.
func (Discard) SetGlobalTimeScale(float64) {}

// Fanout forwards every update to each sink in order.
type Fanout []Sink

// SetColor forwards the colour to every sink.
func (f Fanout) SetColor(id ObjectID, c RGBA) {
	for _, s := range f {
		s.SetColor(id, c)
	}
}

// SetContinuousParam forwards the value to every sink.
func (f Fanout) SetContinuousParam(id ObjectID, name string, v float64) {
	for _, s := range f {
		s.SetContinuousParam(id, name, v)
	}
}

// ArmEnvelope forwards the arm to every sink.
func (f Fanout) ArmEnvelope(id ObjectID, kind string) {
	for _, s := range f {
		s.ArmEnvelope(id, kind)
	}
}

// SetCameraOrbit forwards the angle to every sink.
func (f Fanout) SetCameraOrbit(angle float64) {
	for _, s := range f {
		s.SetCameraOrbit(angle)
	}
}

// SetCameraHeight forwards the height to every sink.
func (f Fanout) SetCameraHeight(v float64) {
	for _, s := range f {
		s.SetCameraHeight(v)
	}
}

// SetCameraZoom forwards the zoom to every sink.
func (f Fanout) SetCameraZoom(v float64) {
	for _, s := range f {
		s.SetCameraZoom(v)
	}
}

// SetGlobalTimeScale forwards the scale to every sink.
func (f Fanout) SetGlobalTimeScale(v float64) {
	for _, s := range f {
		s.SetGlobalTimeScale(v)
	}
}

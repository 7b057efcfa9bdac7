package responsive

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/glovestage/internal/envelope"
	"github.com/banshee-data/glovestage/internal/sink"
)

const tick = 10 * time.Millisecond

func newFractal(rec *sink.Recorder) *Object {
	o := New("fractal", rec).
		Add(envelope.KindScale, envelope.MustNew(envelope.Config{
			Duration: 40 * time.Millisecond, Shape: envelope.TriangularUpDown, Base: 1, Target: 2,
		})).
		Add(envelope.KindRotation, envelope.MustNew(envelope.Config{
			Duration: 40 * time.Millisecond, Shape: envelope.SlerpRotation, RotationOffset: envelope.YawDegrees(90),
		})).
		Add(envelope.KindFade, envelope.MustNew(envelope.Config{
			Duration: 20 * time.Millisecond, Shape: envelope.LinearDecay, Base: 0, Target: 1,
		}))
	return o.Chain(envelope.KindScale, envelope.KindFade)
}

func TestObject_ArmReportsStartedKinds(t *testing.T) {
	rec := sink.NewRecorder(0)
	o := newFractal(rec)

	assert.True(t, o.Arm(envelope.KindScale, envelope.KindRotation, envelope.KindHiHat))
	assert.False(t, o.Arm(envelope.KindScale), "re-arm while running is a no-op")
	assert.Equal(t, []string{"scale", "rotation"}, rec.Arms("fractal"))
}

func TestObject_ScalePulseThenChainedFade(t *testing.T) {
	rec := sink.NewRecorder(0)
	o := newFractal(rec)
	o.SetFadeInput(0.8)

	o.Advance(tick)
	assert.Equal(t, []float64{0.8}, rec.Params("fractal", sink.ParamAlpha))

	require.True(t, o.Arm(envelope.KindScale))
	o.Advance(tick) // 10ms
	o.Advance(tick) // 20ms: peak
	assert.InDelta(t, 2.0, o.State().Scale, 1e-9)
	o.Advance(tick)
	o.Advance(tick) // scale done, fade armed and advanced 10ms
	assert.False(t, o.Running(envelope.KindScale))
	assert.True(t, o.Running(envelope.KindFade))
	assert.InDelta(t, 1.0, o.State().Scale, 1e-9)
	assert.InDelta(t, 0.5, o.State().Alpha, 1e-9)

	o.Advance(tick) // fade done, alpha follows the input again
	assert.False(t, o.Running(envelope.KindFade))
	assert.InDelta(t, 0.8, o.State().Alpha, 1e-9)
}

func TestObject_RotationComposesWithSpin(t *testing.T) {
	rec := sink.NewRecorder(0)
	o := New("primary", rec).WithSpin(100).
		Add(envelope.KindRotation, envelope.MustNew(envelope.Config{
			Duration: 20 * time.Millisecond, Shape: envelope.SlerpRotation, RotationOffset: envelope.YawDegrees(45),
		}))

	for i := 0; i < 10; i++ {
		o.Advance(10 * time.Millisecond)
	}
	assert.InDelta(t, 10.0, envelope.Yaw(o.Rotation()), 1e-6)

	require.True(t, o.Arm(envelope.KindRotation))
	o.Advance(tick)
	o.Advance(tick)
	// 10° of spin before the pulse, 45° from it and 2° of spin during it.
	assert.InDelta(t, 57.0, envelope.Yaw(o.Rotation()), 1e-6)
	assert.False(t, o.Running(envelope.KindRotation))
}

func TestObject_WritesOnlyChanges(t *testing.T) {
	rec := sink.NewRecorder(0)
	o := New("idle", rec)

	o.Advance(tick)
	o.Advance(tick)
	o.Advance(tick)

	assert.Len(t, rec.Params("idle", sink.ParamScale), 1)
	assert.Len(t, rec.Params("idle", sink.ParamRotationYaw), 1)
	assert.Len(t, rec.Params("idle", sink.ParamAlpha), 1)
}

func TestObject_SetFadeInputClamps(t *testing.T) {
	o := New("x", nil)
	o.SetFadeInput(3)
	o.Advance(tick)
	assert.Equal(t, 1.0, o.State().Alpha)
	o.SetFadeInput(-1)
	o.Advance(tick)
	assert.Equal(t, 0.0, o.State().Alpha)
}

func TestObject_StateListsRunning(t *testing.T) {
	o := newFractal(sink.NewRecorder(0))
	o.Arm(envelope.KindRotation)
	st := o.State()
	assert.Equal(t, "fractal", st.ID)
	assert.Equal(t, []string{"rotation"}, st.Running)
	assert.Len(t, o.Envelopes(), 3)
}

func TestObject_OverlappingSlerpsAccumulate(t *testing.T) {
	rec := sink.NewRecorder(0)
	o := New("fractal", rec).
		Add(envelope.KindRotation, envelope.MustNew(envelope.Config{
			Duration: 40 * time.Millisecond, Shape: envelope.SlerpRotation, RotationOffset: envelope.YawDegrees(90),
		})).
		Add(envelope.KindHiHat, envelope.MustNew(envelope.Config{
			Duration: 20 * time.Millisecond, Shape: envelope.SlerpRotation, RotationOffset: envelope.YawDegrees(30),
		}))

	require.True(t, o.Arm(envelope.KindRotation))
	o.Advance(tick)
	assert.InDelta(t, 22.5, envelope.Yaw(o.Rotation()), 1e-6)

	require.True(t, o.Arm(envelope.KindHiHat))
	prev := envelope.Yaw(o.Rotation())
	for i := 0; i < 3; i++ {
		o.Advance(tick)
		yaw := envelope.Yaw(o.Rotation())
		assert.Greater(t, yaw, prev, "tick %d must not rewind", i)
		prev = yaw
	}
	assert.False(t, o.Running(envelope.KindRotation))
	assert.False(t, o.Running(envelope.KindHiHat))
	assert.InDelta(t, 120.0, envelope.Yaw(o.Rotation()), 1e-6)

	// Both pulses again from the new heading.
	o.Arm(envelope.KindRotation, envelope.KindHiHat)
	for i := 0; i < 4; i++ {
		o.Advance(tick)
	}
	assert.InDelta(t, -120.0, envelope.Yaw(o.Rotation()), 1e-6)
}

func TestObject_RefreshRewritesUnchanged(t *testing.T) {
	rec := sink.NewRecorder(0)
	o := New("idle", rec).WithRefresh(3)

	for i := 0; i < 6; i++ {
		o.Advance(tick)
	}
	// First tick, then ticks 3 and 6.
	assert.Len(t, rec.Params("idle", sink.ParamScale), 3)
	assert.Len(t, rec.Params("idle", sink.ParamAlpha), 3)
}

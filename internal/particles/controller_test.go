package particles

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/glovestage/internal/envelope"
	"github.com/banshee-data/glovestage/internal/sink"
)

type fakeSystem struct {
	velocity float64
	calls    int
}

func (s *fakeSystem) ScaleVelocities(f float64) {
	s.velocity *= f
	s.calls++
}

func TestController_ImpulseRestores(t *testing.T) {
	rec := sink.NewRecorder(0)
	field := NewSinkField(rec, "field", -9.8, 2)
	sys := &fakeSystem{velocity: 4}

	c, err := NewController(field, sys, 0, 50*time.Millisecond)
	require.NoError(t, err)

	require.True(t, c.Trigger())
	assert.True(t, c.Active())
	assert.Zero(t, field.Gravity())
	assert.Zero(t, field.Attraction())
	assert.InDelta(t, 6.0, sys.velocity, 1e-9)

	assert.False(t, c.Trigger(), "re-trigger while active is a no-op")
	assert.Equal(t, 1, sys.calls)

	for i := 0; i < 4; i++ {
		c.Advance(10 * time.Millisecond)
	}
	assert.True(t, c.Active())
	c.Advance(10 * time.Millisecond)
	assert.False(t, c.Active())

	assert.Equal(t, -9.8, field.Gravity())
	assert.Equal(t, 2.0, field.Attraction())
	assert.InDelta(t, 4.0, sys.velocity, 1e-9)
	assert.Equal(t, []float64{0, -9.8}, rec.Params("field", sink.ParamGravity))
	assert.Equal(t, uint64(1), c.Armed())

	require.True(t, c.Trigger(), "accepts a new trigger after expiry")
}

func TestController_IdleAdvance(t *testing.T) {
	sys := &fakeSystem{velocity: 1}
	c, err := NewController(NewSinkField(sink.Discard{}, "f", 1, 1), sys, 2, time.Second)
	require.NoError(t, err)
	c.Advance(time.Second)
	assert.Zero(t, sys.calls)
	assert.Equal(t, time.Second, c.Duration())
}

func TestController_InvalidDuration(t *testing.T) {
	_, err := NewController(nil, nil, 1.5, 0)
	assert.ErrorIs(t, err, envelope.ErrInvalidDuration)
}

func TestSinkSystem(t *testing.T) {
	rec := sink.NewRecorder(0)
	NewSinkSystem(rec, "sparks").ScaleVelocities(1.5)
	assert.Equal(t, []float64{1.5}, rec.Params("sparks", sink.ParamVelocityMultiplier))
}

package mapper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/glovestage/internal/sink"
)

func TestDamper_ApproachesWithoutOvershoot(t *testing.T) {
	d := Damper{SmoothTime: 75 * time.Millisecond, Value: 0, Target: 1}
	prev := 0.0
	for range 60 {
		v := d.Step(16 * time.Millisecond)
		assert.GreaterOrEqual(t, v, prev)
		assert.LessOrEqual(t, v, 1.0)
		prev = v
	}
	assert.InDelta(t, 1.0, prev, 1e-3)

	d.Target = 0
	v := d.Step(16 * time.Millisecond)
	assert.Less(t, v, prev)
	assert.Greater(t, v, 0.0)
}

func TestDamper_Degenerate(t *testing.T) {
	d := Damper{Value: 0.3, Target: 0.8}
	assert.Equal(t, 0.8, d.Step(time.Millisecond), "zero smooth time jumps to the target")

	d = Damper{SmoothTime: time.Second, Value: 0.3, Target: 0.8}
	assert.Equal(t, 0.3, d.Step(0), "zero dt holds")
}

func TestLerpColor(t *testing.T) {
	a := sink.RGBA{R: 1, A: 1}
	b := sink.RGBA{G: 1, A: 0}
	assert.Equal(t, a, LerpColor(a, b, 0))
	assert.Equal(t, b, LerpColor(a, b, 1))
	assert.Equal(t, sink.RGBA{R: 0.5, G: 0.5, A: 0.5}, LerpColor(a, b, 0.5))
}

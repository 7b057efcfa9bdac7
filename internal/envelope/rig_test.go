package envelope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRig_AdvanceOrderAndChain(t *testing.T) {
	fade := MustNew(Config{Duration: 50 * time.Millisecond, Shape: LinearDecay, Base: 0, Target: 1})
	scale := MustNew(Config{Duration: 20 * time.Millisecond, Shape: TriangularUpDown, Base: 1, Target: 2}).Chain(fade)
	rot := MustNew(Config{Duration: 30 * time.Millisecond, Shape: SlerpRotation, RotationOffset: YawDegrees(45)})

	r := NewRig().Add(KindScale, scale).Add(KindRotation, rot).Add(KindFade, fade)
	assert.Equal(t, []Kind{KindScale, KindRotation, KindFade}, r.Kinds())

	assert.Empty(t, r.Advance(tick), "idle rig produces no results")

	require.True(t, r.Trigger(KindScale, KindRotation))
	assert.False(t, r.Trigger(KindScale), "already running")
	assert.False(t, r.Trigger(KindHiHat), "absent kinds are ignored")

	res := r.Advance(tick)
	require.Len(t, res, 2)
	assert.Equal(t, KindScale, res[0].Kind)
	assert.Equal(t, KindRotation, res[1].Kind)

	// Scale completes on this tick and arms fade, which advances in the
	// same pass because it sits later in the rig.
	res = r.Advance(tick)
	require.Len(t, res, 3)
	assert.True(t, res[0].Sample.Done)
	assert.Equal(t, KindFade, res[2].Kind)
	assert.Equal(t, 10*time.Millisecond, fade.Elapsed())
	assert.True(t, r.Running(KindFade))
	assert.False(t, r.Running(KindScale))
}

func TestRig_AddReplacesInPlace(t *testing.T) {
	a := MustNew(Config{Duration: time.Second})
	b := MustNew(Config{Duration: 2 * time.Second})
	r := NewRig().Add(KindKick, a).Add(KindHiHat, a).Add(KindKick, b)

	assert.Equal(t, []Kind{KindKick, KindHiHat}, r.Kinds())
	assert.Same(t, b, r.Get(KindKick))
	assert.Nil(t, r.Get(KindFade))
}

package envelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/num/quat"
)

func TestYawRoundTrip(t *testing.T) {
	for _, deg := range []float64{0, 15, 90, 179, -90, -170} {
		assert.InDelta(t, deg, Yaw(YawDegrees(deg)), 1e-9, "deg=%v", deg)
	}
}

func TestSlerp_Endpoints(t *testing.T) {
	a, b := YawDegrees(10), YawDegrees(70)
	assert.InDelta(t, 10, Yaw(Slerp(a, b, 0)), 1e-9)
	assert.InDelta(t, 70, Yaw(Slerp(a, b, 1)), 1e-9)
	assert.InDelta(t, 40, Yaw(Slerp(a, b, 0.5)), 1e-9)
}

func TestSlerp_UnitLength(t *testing.T) {
	a, b := YawDegrees(0), YawDegrees(120)
	for _, p := range []float64{0.1, 0.33, 0.9} {
		assert.InDelta(t, 1, quat.Abs(Slerp(a, b, p)), 1e-12)
	}
}

func TestSlerp_ShortestArc(t *testing.T) {
	// q and -q are the same rotation; the path must not take the long way.
	a := YawDegrees(0)
	b := quat.Scale(-1, YawDegrees(20))
	assert.InDelta(t, 10, Yaw(Slerp(a, b, 0.5)), 1e-6)
}

func TestNormalize_Zero(t *testing.T) {
	assert.Equal(t, Identity, Normalize(quat.Number{}))
}

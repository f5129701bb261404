package slope

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStep(t *testing.T) {
	assert.Equal(t, 1e-4, Step(0, 1e-4))
	assert.InDelta(t, 2e-4, Step(2, 1e-4), 1e-18)
	assert.InDelta(t, -3e-4, Step(-3, 1e-4), 1e-18)
}

func TestEstimate2_Linear(t *testing.T) {
	f := func(x float64) (float64, float64) { return 3*x + 1, -x }
	for _, x := range []float64{2, 0} {
		sx, sy := Estimate2(x, DefaultEpsilon, f)
		assert.InDelta(t, 3, sx, 1e-9)
		assert.InDelta(t, -1, sy, 1e-9)
	}
}

func TestEstimate2_OneSided(t *testing.T) {
	// For x² the forward difference overshoots by dx, a symmetric one would not.
	f := func(x float64) (float64, float64) { return x * x, 0 }
	x := 2.0
	dx := Step(x, DefaultEpsilon)
	got, _ := Estimate2(x, DefaultEpsilon, f)
	assert.InDelta(t, 2*x+dx, got, 1e-9)
	assert.Greater(t, got, 2*x)
}

func TestEstimate2(t *testing.T) {
	theta := 0.7
	sx, sy := Estimate2(1.5, DefaultEpsilon, func(m float64) (float64, float64) {
		return m * math.Cos(theta), m * math.Sin(theta)
	})
	assert.InDelta(t, math.Cos(theta), sx, 1e-9)
	assert.InDelta(t, math.Sin(theta), sy, 1e-9)
}

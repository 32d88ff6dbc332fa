package observer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLowPassPassThrough(t *testing.T) {
	f := NewLowPassFilter(0, 3)
	for _, u := range []float64{1, -7.5, 0, 1e6} {
		assert.Equal(t, u, f.Update(u))
		assert.Equal(t, u, f.Y)
	}
}

func TestLowPassHold(t *testing.T) {
	f := NewLowPassFilter(1, 3)
	for _, u := range []float64{1, -7.5, 0, 1e6} {
		assert.Equal(t, 3.0, f.Update(u))
	}
}

func TestLowPassStep(t *testing.T) {
	f := NewLowPassFilter(0.9, 0)
	var y float64
	for i := 0; i < 100; i++ {
		y = f.Update(10)
	}
	assert.InDelta(t, 10*(1-math.Pow(0.9, 100)), y, 1e-9)
}

func TestWrapWithinPi(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		chi := (r.Float64() - 0.5) * 20 * Pi
		chiC := (r.Float64() - 0.5) * 200 * Pi
		w := Wrap(chiC, chi)
		assert.LessOrEqual(t, math.Abs(w-chi), Pi+1e-9, "Wrap(%g, %g) = %g", chiC, chi, w)
		// Only whole turns are removed.
		turns := (chiC - w) / (2 * Pi)
		assert.InDelta(t, math.Round(turns), turns, 1e-6)
	}
}

func TestWrapBoundary(t *testing.T) {
	assert.Equal(t, Pi, Wrap(Pi, 0))
	assert.Equal(t, -Pi, Wrap(-Pi, 0))
	assert.InDelta(t, Pi, math.Abs(Wrap(3*Pi, 0)), 1e-12)
	assert.InDelta(t, Pi, math.Abs(Wrap(-3*Pi, 0)), 1e-12)
	assert.InDelta(t, 0.1, Wrap(0.1+2*Pi, 0), 1e-12)
	assert.InDelta(t, 3.0, Wrap(3-4*Pi, 2.5), 1e-12)
	assert.InDelta(t, 1e3-2*Pi*math.Round(1e3/(2*Pi)), Wrap(1e3, 0), 1e-9)

	w := Wrap[float32](7, 0)
	assert.InDelta(t, 7-2*Pi, float64(w), 1e-5)
}

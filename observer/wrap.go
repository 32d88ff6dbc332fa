package observer

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Wrap shifts chiC by multiples of 2π until it lies within π of chi, so that
// chiC - chi is the short way around the circle. A difference of exactly ±π
// is left alone.
func Wrap[T constraints.Float](chiC, chi T) T {
	const twoPi = 2 * math.Pi
	if d := float64(chiC - chi); math.Abs(d) > 8*math.Pi {
		chiC -= T(twoPi * math.Round(d/twoPi))
	}
	for chiC-chi > math.Pi {
		chiC -= twoPi
	}
	for chiC-chi < -math.Pi {
		chiC += twoPi
	}
	return chiC
}

// Package sim flies a scripted situation and synthesizes the sensor readings an
// aircraft would see along it, so the observer can be run against a known truth.
package sim

import (
	"errors"
	"math"
)

// ErrOutOfRange is returned when a situation is asked about a time it does not cover.
var ErrOutOfRange = errors.New("sim: requested time is outside of scenario")

// Situation defines the true flight condition over a span of time.
type Situation interface {
	BeginTime() float64
	EndTime() float64
	Interpolate(t float64, x *Truth) error
}

// Truth is the actual state of the aircraft, which the observer never sees.
type Truth struct {
	T               float64 // s
	North, East     float64 // m
	Altitude        float64 // m
	Phi, Theta, Psi float64 // rad
	PhiDot          float64 // Euler angle rates, rad/s
	ThetaDot        float64
	PsiDot          float64
	Va              float64 // m/s
	Wn, We          float64 // m/s
	Vg, Chi         float64 // m/s, rad
}

// BodyRates returns the body-axis angular rates p, q, r implied by the Euler
// angles and their rates.
func (x *Truth) BodyRates() (p, q, r float64) {
	sphi, cphi := math.Sincos(x.Phi)
	stheta, ctheta := math.Sincos(x.Theta)
	p = x.PhiDot - x.PsiDot*stheta
	q = x.ThetaDot*cphi + x.PsiDot*sphi*ctheta
	r = -x.ThetaDot*sphi + x.PsiDot*cphi*ctheta
	return
}

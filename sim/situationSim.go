package sim

import (
	"fmt"
	"math"
	"sort"
)

const pi = math.Pi

// SituationSim defines a scenario by piecewise-linear interpolation between knots.
type SituationSim struct {
	t               []float64 // times for situation, s
	va              []float64 // airspeed, m/s
	phi, theta, psi []float64 // attitude, rad [roll R/L, pitch U/D, heading N->E->S->W]
	wn, we          []float64 // wind, m/s, earth frame [N/S, E/W]
	alt             []float64 // altitude above ground, m
}

// NewSituationSim checks that the knot columns agree in length and that time
// is strictly increasing.
func NewSituationSim(t, va, phi, theta, psi, wn, we, alt []float64) (*SituationSim, error) {
	if len(t) < 2 {
		return nil, fmt.Errorf("sim: situation needs at least two knots, got %d", len(t))
	}
	for _, c := range [][]float64{va, phi, theta, psi, wn, we, alt} {
		if len(c) != len(t) {
			return nil, fmt.Errorf("sim: situation columns have %d and %d knots", len(t), len(c))
		}
	}
	for i := 1; i < len(t); i++ {
		if t[i] <= t[i-1] {
			return nil, fmt.Errorf("sim: situation time not increasing at knot %d", i)
		}
	}
	return &SituationSim{t: t, va: va, phi: phi, theta: theta, psi: psi, wn: wn, we: we, alt: alt}, nil
}

// BeginTime returns the time stamp when the simulation begins
func (s *SituationSim) BeginTime() float64 {
	return s.t[0]
}

// EndTime returns the time stamp when the simulation ends
func (s *SituationSim) EndTime() float64 {
	return s.t[len(s.t)-1]
}

// Interpolate the true state from a Situation definition at a given time.
// Position is not part of a situation; it is left for the caller to integrate.
func (s *SituationSim) Interpolate(t float64, x *Truth) error {
	if t < s.t[0] || t > s.t[len(s.t)-1] {
		return ErrOutOfRange
	}
	ix := 0
	if t > s.t[0] {
		ix = sort.SearchFloat64s(s.t, t) - 1
	}

	ddt := s.t[ix+1] - s.t[ix]
	f := (s.t[ix+1] - t) / ddt
	lerp := func(a []float64) float64 { return f*a[ix] + (1-f)*a[ix+1] }
	rate := func(a []float64) float64 { return (a[ix+1] - a[ix]) / ddt }

	x.T = t
	x.Va = lerp(s.va)
	x.Phi = lerp(s.phi)
	x.Theta = lerp(s.theta)
	x.Psi = lerp(s.psi)
	x.PhiDot = rate(s.phi)
	x.ThetaDot = rate(s.theta)
	x.PsiDot = rate(s.psi)
	x.Wn = lerp(s.wn)
	x.We = lerp(s.we)
	x.Altitude = lerp(s.alt)

	vn := x.Va*math.Cos(x.Psi) + x.Wn
	ve := x.Va*math.Sin(x.Psi) + x.We
	x.Vg = math.Hypot(vn, ve)
	x.Chi = math.Atan2(ve, vn)
	return nil
}

// Data to define a piecewise-linear turn, with entry and exit
var (
	airspeed = 25.0                                  // Aerosonde cruise, m/s
	turnRate = 2 * pi / 120                          // Standard rate, rad/s
	bank     = math.Atan(airspeed * turnRate / 9.81) // Bank angle for std rate turn at given airspeed
	turnPsi  = []float64{0, 0, 2.5, 62.5, 65, 65}    // Heading at each knot, in seconds of full-rate turn
)

var sitTurnDef = mustSituation(NewSituationSim(
	// start, initiate roll-in, end roll-in, initiate roll-out, end roll-out, end
	[]float64{0, 10, 15, 75, 80, 90},
	[]float64{airspeed, airspeed, airspeed, airspeed, airspeed, airspeed},
	[]float64{0, 0, bank, bank, 0, 0},
	[]float64{0, 0, 0.02, 0.02, 0, 0},
	scale(turnPsi, turnRate),
	[]float64{3, 3, 3, 3, 3, 3},
	[]float64{-2, -2, -2, -2, -2, -2},
	[]float64{100, 100, 100, 100, 100, 100},
))

var sitStraightDef = mustSituation(NewSituationSim(
	[]float64{0, 60},
	[]float64{airspeed, airspeed},
	[]float64{0, 0},
	[]float64{0, 0},
	[]float64{pi / 4, pi / 4},
	[]float64{-4, -4},
	[]float64{1, 1},
	[]float64{100, 100},
))

// Named returns one of the canned situations: "turn" or "straight".
func Named(name string) (*SituationSim, bool) {
	switch name {
	case "turn":
		return sitTurnDef, true
	case "straight":
		return sitStraightDef, true
	}
	return nil, false
}

func scale(a []float64, k float64) []float64 {
	b := make([]float64, len(a))
	for i, v := range a {
		b[i] = v * k
	}
	return b
}

func mustSituation(s *SituationSim, err error) *SituationSim {
	if err != nil {
		panic(err)
	}
	return s
}

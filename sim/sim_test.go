package sim

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/westphae/quaternion"

	"github.com/westphae/fwobserver/observer"
)

func TestBodyGravity(t *testing.T) {
	phis := []float64{0, 0.1, 0.2, 0.5, 1, 1.5, 2, 2.5, 3, -3, -2, -1, -0.5, -0.2}
	thetas := []float64{0.1, 0.2, 0.5, 1, 1.5, -1.5, -0.5, -0.2, 0.2, 0.1, -1, -0.5, -0.2, 0}
	psis := []float64{1, 1.5, 2, 2.5, 3, 4, 0.1, 0.2, 0.5, 5, 5.5, 3.5, 6, 0}

	for i := range phis {
		phi, theta := phis[i], thetas[i]
		g := BodyGravity(phi, theta, psis[i], 9.81)
		assert.InDelta(t, -9.81*math.Sin(theta), g[0], 1e-9, "case %d", i)
		assert.InDelta(t, 9.81*math.Cos(theta)*math.Sin(phi), g[1], 1e-9, "case %d", i)
		assert.InDelta(t, 9.81*math.Cos(theta)*math.Cos(phi), g[2], 1e-9, "case %d", i)

		// Rotating back to earth axes recovers straight-down gravity.
		e := quaternion.FromEuler(phi, theta, psis[i])
		n := e.RotateVec3(quaternion.Vec3{X: g[0], Y: g[1], Z: g[2]})
		assert.InDelta(t, 0, n.X, 1e-9, "case %d", i)
		assert.InDelta(t, 0, n.Y, 1e-9, "case %d", i)
		assert.InDelta(t, 9.81, n.Z, 1e-9, "case %d", i)
	}
}

func TestInterpolate(t *testing.T) {
	sit, ok := Named("turn")
	require.True(t, ok)

	var x Truth
	require.NoError(t, sit.Interpolate(15, &x))
	assert.InDelta(t, bank, x.Phi, 1e-12)
	assert.InDelta(t, 2.5*turnRate, x.Psi, 1e-12)

	require.NoError(t, sit.Interpolate(40, &x))
	assert.InDelta(t, turnRate, x.PsiDot, 1e-12)
	assert.Zero(t, x.PhiDot)
	assert.InDelta(t, math.Hypot(airspeed*math.Cos(x.Psi)+3, airspeed*math.Sin(x.Psi)-2), x.Vg, 1e-12)

	assert.True(t, errors.Is(sit.Interpolate(-1, &x), ErrOutOfRange))
	assert.True(t, errors.Is(sit.Interpolate(sit.EndTime()+0.1, &x), ErrOutOfRange))

	_, ok = Named("loop")
	assert.False(t, ok)
}

func TestCoordinatedTurnAccel(t *testing.T) {
	sit, _ := Named("turn")
	p := observer.DefaultParams()
	f := NewFlight(sit, p, 1, Noise{}, 1)
	f.t = 40

	var x Truth
	var m observer.SensorMeasurement
	require.NoError(t, f.Next(&x, &m))

	// No sideslip in a coordinated turn; the load factor is 1/cos(bank).
	assert.InDelta(t, 0, m.AccelY, 1e-9)
	assert.InDelta(t, -p.Gravity*math.Cos(x.Theta)/math.Cos(x.Phi), m.AccelZ, 1e-9)
	assert.InDelta(t, p.Rho*p.Gravity*100, m.StaticPressure, 1e-9)
	assert.InDelta(t, p.Rho*airspeed*airspeed/2, m.DiffPressure, 1e-9)
}

func TestFlightHoldsGPS(t *testing.T) {
	sit, _ := Named("straight")
	p := observer.DefaultParams()
	f := NewFlight(sit, p, 1, NoiseFromParams(p), 7)

	var x Truth
	var m observer.SensorMeasurement
	fixes := map[observer.GPSFix]bool{}
	for i := 0; i < 300; i++ {
		require.NoError(t, f.Next(&x, &m))
		fixes[m.GPS] = true
	}
	assert.Len(t, fixes, 3)
}

func TestFlightPosition(t *testing.T) {
	sit, _ := Named("straight")
	p := observer.DefaultParams()
	f := NewFlight(sit, p, 1, Noise{}, 1)

	var x Truth
	var m observer.SensorMeasurement
	for i := 0; i <= 1000; i++ {
		require.NoError(t, f.Next(&x, &m))
	}
	// x is the truth at t = 10 s.
	assert.InDelta(t, 10*x.Vg*math.Cos(x.Chi), x.North, 1e-6)
	assert.InDelta(t, 10*x.Vg*math.Sin(x.Chi), x.East, 1e-6)

	for {
		if err := f.Next(&x, &m); err != nil {
			assert.True(t, errors.Is(err, ErrOutOfRange))
			break
		}
	}
	assert.InDelta(t, sit.EndTime(), f.Time(), 2*p.TsControl)
}

func TestReadSituation(t *testing.T) {
	sit, err := ReadSituation(strings.NewReader(
		"Extra,T,Va,Phi,Theta,Psi,Wn,We,Alt\n" +
			"x,0,20,0,0,90,1,2,50\n" +
			"y,10,30,30,0,90,1,2,60\n"))
	require.NoError(t, err)

	var x Truth
	require.NoError(t, sit.Interpolate(5, &x))
	assert.InDelta(t, 25, x.Va, 1e-12)
	assert.InDelta(t, 15*observer.Deg, x.Phi, 1e-12)
	assert.InDelta(t, observer.Pi/2, x.Psi, 1e-12)
	assert.InDelta(t, 55, x.Altitude, 1e-12)

	_, err = ReadSituation(strings.NewReader("T,Va\n0,1\n1,2\n"))
	assert.Error(t, err)

	_, err = ReadSituation(strings.NewReader("T,Va,Phi,Theta,Psi,Wn,We,Alt\n0,20,0,0,0,0,0,0\n"))
	assert.Error(t, err, "one knot is not a situation")
}

func TestEstimateLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewEstimateLogger(&buf, "Roll", "Pitch", "Missing")
	require.NoError(t, err)
	require.NoError(t, l.Log(map[string]interface{}{"Roll": 1.5, "Pitch": -2.0}))
	require.NoError(t, l.Close())

	assert.Equal(t, "Roll,Pitch,Missing\n1.500000,-2.000000,NaN\n", buf.String())

	_, err = NewEstimateLogger(&buf)
	assert.Error(t, err)
}

func TestErrorStats(t *testing.T) {
	e := NewErrorStats()
	for _, d := range []float64{1, -1, 1, -1} {
		e.Add(&observer.EstimatedState{North: d, Psi: 359 * observer.Deg}, &Truth{Psi: 1 * observer.Deg})
	}
	byName := map[string]Summary{}
	for _, s := range e.Summarize(0) {
		byName[s.Channel] = s
	}

	assert.Equal(t, 4, byName["North"].N)
	assert.InDelta(t, 0, byName["North"].Mean, 1e-12)
	assert.InDelta(t, 1, byName["North"].RMS, 1e-12)
	assert.InDelta(t, 1, byName["North"].MaxAbs, 1e-12)
	assert.InDelta(t, -2, byName["Heading"].Mean, 1e-9)

	assert.Empty(t, e.Summarize(10))

	var buf bytes.Buffer
	Print(&buf, e.Summarize(0))
	assert.Contains(t, buf.String(), "Heading")
}

// Fly the turn with realistic sensor noise and check the observer follows it.
func TestObserverTracksTurn(t *testing.T) {
	if testing.Short() {
		t.Skip("long simulation")
	}
	sit, _ := Named("turn")
	p := observer.DefaultParams()
	f := NewFlight(sit, p, 1, NoiseFromParams(p), 3)

	var x Truth
	var m observer.SensorMeasurement
	require.NoError(t, f.Next(&x, &m))
	o, err := observer.NewObserver(p, observer.EstimatedState{}, m)
	require.NoError(t, err)

	stats := NewErrorStats()
	for {
		if err := f.Next(&x, &m); err != nil {
			require.True(t, errors.Is(err, ErrOutOfRange))
			break
		}
		s, err := o.Update(&m)
		require.NoError(t, err, "t = %.2f", x.T)
		stats.Add(s, &x)
	}

	rms := map[string]float64{}
	for _, s := range stats.Summarize(1000) {
		rms[s.Channel] = s.RMS
	}
	assert.Less(t, rms["Roll"], 5.0)
	assert.Less(t, rms["Pitch"], 5.0)
	assert.Less(t, rms["Altitude"], 1.0)
	assert.Less(t, rms["Va"], 0.5)
	assert.Less(t, rms["North"], 10.0)
	assert.Less(t, rms["East"], 10.0)
	assert.Less(t, rms["Vg"], 2.0)
}

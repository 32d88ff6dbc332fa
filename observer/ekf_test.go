package observer

import (
	"errors"
	"testing"

	"github.com/skelterjohn/go.matrix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/westphae/fwobserver/linalg"
)

func TestAttitudeLevelStaysLevel(t *testing.T) {
	p := DefaultParams()
	k := NewAttitudeEKF(p)
	s := &EstimatedState{Va: 25}

	for i := 0; i < 500; i++ {
		require.NoError(t, k.Update(s, 0, 0, -p.Gravity))
		assert.InDelta(t, 0, s.Phi, 1e-9)
		assert.InDelta(t, 0, s.Theta, 1e-9)
	}
}

func TestAttitudeConvergesToLevel(t *testing.T) {
	p := DefaultParams()
	k := NewAttitudeEKF(p)
	k.Xhat = linalg.Vector(0.2, -0.1)
	s := &EstimatedState{Va: 25}

	for i := 0; i < 500; i++ {
		require.NoError(t, k.Update(s, 0, 0, -p.Gravity))
	}
	assert.InDelta(t, 0, s.Phi, 1e-3)
	assert.InDelta(t, 0, s.Theta, 1e-3)

	dphi, dtheta := k.Uncertainty()
	assert.Less(t, dphi, 0.01)
	assert.Less(t, dtheta, 0.01)
	assert.True(t, linalg.IsPSD(k.P, 1e-9))
}

func TestAttitudeGate(t *testing.T) {
	p := DefaultParams()
	p.AccelGate = 16
	k := NewAttitudeEKF(p)
	s := &EstimatedState{Va: 25}
	before := k.Xhat.Copy()

	ok, err := k.Correct(s, p.Gravity, 0, 0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, k.Rejected)
	assert.Equal(t, before.Array(), k.Xhat.Array())

	ok, err = k.Correct(s, 0, 0, -p.Gravity)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, k.Rejected)
}

func TestAttitudeSingularInnovation(t *testing.T) {
	k := NewAttitudeEKF(DefaultParams())
	k.P = matrix.Zeros(2, 2)
	k.RAccel = matrix.Zeros(3, 3)
	before := k.Xhat.Copy()

	_, err := k.Correct(&EstimatedState{Va: 25}, 0.5, 0, -9)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSingularMatrix))
	assert.Equal(t, before.Array(), k.Xhat.Array())
}

func TestAttitudeUpdateRollsBack(t *testing.T) {
	k := NewAttitudeEKF(DefaultParams())
	k.P = matrix.Zeros(2, 2)
	k.Q = matrix.Zeros(2, 2)
	k.QGyro = matrix.Zeros(3, 3)
	k.RAccel = matrix.Zeros(3, 3)
	before := k.Xhat.Copy()
	s := &EstimatedState{P: 0.1, Va: 25}

	err := k.Update(s, 0, 0, -9.81)
	assert.True(t, errors.Is(err, ErrSingularMatrix))
	assert.Equal(t, before.Array(), k.Xhat.Array())
	assert.Zero(t, s.Phi)
}

func TestPositionSingularInnovation(t *testing.T) {
	k := NewPositionEKF(DefaultParams())
	k.P = matrix.Zeros(nPosition, nPosition)
	k.RPseudo = matrix.Zeros(2, 2)

	err := k.CorrectPseudo(&EstimatedState{Va: 25})
	assert.True(t, errors.Is(err, ErrSingularMatrix))
}

func TestPositionGPSAppliedOnce(t *testing.T) {
	k := NewPositionEKF(DefaultParams())
	s := &EstimatedState{Va: 25}

	// A fix of all zeros is still a first fix.
	applied, err := k.CorrectGPS(s, GPSFix{})
	require.NoError(t, err)
	assert.True(t, applied)

	fix := GPSFix{North: 10, East: -3, Vg: 24, Course: 0.1}
	applied, err = k.CorrectGPS(s, fix)
	require.NoError(t, err)
	assert.True(t, applied)

	x, p := k.Xhat.Copy(), k.P.Copy()
	applied, err = k.CorrectGPS(s, fix)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, x.Array(), k.Xhat.Array())
	assert.Equal(t, p.Array(), k.P.Array())
	assert.False(t, k.NewFix(fix))
	assert.True(t, k.NewFix(GPSFix{North: 10, East: -3, Vg: 24, Course: 0.2}))
}

func TestPositionGPSCourseWrap(t *testing.T) {
	k := NewPositionEKF(DefaultParams())
	k.Xhat.Set(iChi, 0, Pi-0.05)
	k.Xhat.Set(iPsi, 0, Pi-0.05)
	s := &EstimatedState{Va: 25}

	// Reported just across the ±π seam from the estimate.
	_, err := k.CorrectGPS(s, GPSFix{Vg: 25, Course: -Pi + 0.05})
	require.NoError(t, err)
	chi := k.Xhat.Get(iChi, 0)
	assert.Greater(t, chi, Pi-0.06)
	assert.Less(t, chi, Pi+0.06)
}

func TestPositionLowGroundSpeed(t *testing.T) {
	k := NewPositionEKF(DefaultParams())
	k.Xhat.Set(iVg, 0, 0.05)
	x, p := k.Xhat.Copy(), k.P.Copy()

	err := k.Predict(&EstimatedState{Va: 25})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNumericalInstability))
	assert.Equal(t, x.Array(), k.Xhat.Array())
	assert.Equal(t, p.Array(), k.P.Array())
}

func TestPositionWindConverges(t *testing.T) {
	const (
		va = 25.0
		wn = -5.0 // Headwind
		vg = va + wn
	)
	p := DefaultParams()
	k := NewPositionEKF(p)
	s := &EstimatedState{Va: va}

	var fix GPSFix
	for i := 0; i < 3000; i++ {
		if i%100 == 0 {
			tt := float64(i) * p.TsControl
			fix = GPSFix{North: vg * tt, Vg: vg}
		}
		require.NoError(t, k.Update(s, &SensorMeasurement{GPS: fix}))
	}

	assert.InDelta(t, wn, s.Wn, 0.2)
	assert.InDelta(t, 0, s.We, 0.2)
	assert.InDelta(t, vg, s.Vg, 0.2)
	assert.InDelta(t, 0, s.Chi, 0.01)
	assert.InDelta(t, 0, s.Psi, 0.01)
	assert.InDelta(t, vg*30, s.North, 2)
	assert.True(t, linalg.IsPSD(k.P, 1e-6))
}

func TestPositionGyroCouplingShape(t *testing.T) {
	x := []float64{0, 0, 20, 0, 1, 2, 0.3}
	u := positionInputs{phi: 0.2, theta: 0.1, va: 25, g: 9.81}
	g := positionGyroCoupling(x, u)

	require.Equal(t, nPosition, g.Rows())
	require.Equal(t, 3, g.Cols())
	for i := 0; i < nPosition; i++ {
		assert.Zero(t, g.Get(i, 0), "p does not enter the position kinematics")
		if i != iVg && i != iPsi {
			assert.Zero(t, g.Get(i, 1))
			assert.Zero(t, g.Get(i, 2))
		}
	}

	// The psi row is ∂psi'/∂[q, r].
	j := linalg.Jacobian(func(w []float64, _ struct{}) []float64 {
		return []float64{headingRate(positionInputs{phi: u.phi, theta: u.theta, q: w[0], r: w[1]})}
	}, []float64{0.01, -0.02}, struct{}{})
	assert.InDelta(t, j.Get(0, 0), g.Get(iPsi, 1), 1e-9)
	assert.InDelta(t, j.Get(0, 1), g.Get(iPsi, 2), 1e-9)
}

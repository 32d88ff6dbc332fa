package observer

import (
	"fmt"
	"math"

	"github.com/skelterjohn/go.matrix"

	"github.com/westphae/fwobserver/linalg"
)

/*
PositionEKF is a continuous-discrete EKF for position, ground velocity, wind
and heading.

State x = [pn, pe, Vg, chi, wn, we, psi]. Roll, pitch, q, r and Va are inputs
taken from the attitude filter and filtered sensors of the same tick, so the
attitude filter must run first.

Equations of motion (wind is a random walk):

	pn'  = Vg*cos(chi)
	pe'  = Vg*sin(chi)
	Vg'  = ((Va*cos(psi)+wn)*(-Va*psi'*sin(psi)) + (Va*sin(psi)+we)*(Va*psi'*cos(psi))) / Vg
	chi' = g/Vg*tan(phi)*cos(chi-psi)
	wn'  = we' = 0
	psi' = q*sin(phi)/cos(theta) + r*cos(phi)/cos(theta)

Measurements:

	wind triangle, every tick, target 0:
		Va*cos(psi) + wn - Vg*cos(chi)
		Va*sin(psi) + we - Vg*sin(chi)
	GPS, only when the fix changes: pn, pe, Vg, chi
*/
type PositionEKF struct {
	Xhat *matrix.DenseMatrix // [pn, pe, Vg, chi, wn, we, psi]ᵀ
	P    *matrix.DenseMatrix // Covariance of Xhat

	Q       *matrix.DenseMatrix // Process noise
	QGyro   *matrix.DenseMatrix // Gyro noise covariance
	RGPS    *matrix.DenseMatrix // GPS noise covariance
	RPseudo *matrix.DenseMatrix // Wind triangle pseudo-measurement covariance

	N     int     // Propagation substeps per control tick
	Ts    float64 // Substep length, s
	MinVg float64 // Smallest |Vg| the dynamics will divide by

	lastFix GPSFix
	haveFix bool

	g float64
}

// Indices into the position state vector.
const (
	iPn = iota
	iPe
	iVg
	iChi
	iWn
	iWe
	iPsi
	nPosition
)

// NewPositionEKF returns a position filter at the origin with ground speed
// p.InitialVg, no wind, heading and course north.
func NewPositionEKF(p Params) *PositionEKF {
	return &PositionEKF{
		Xhat:  linalg.Vector(0, 0, p.InitialVg, 0, 0, 0, 0),
		P:     matrix.Scaled(matrix.Eye(nPosition), p.PositionP0),
		Q:     matrix.Scaled(matrix.Eye(nPosition), p.PositionQ),
		QGyro: matrix.Scaled(matrix.Eye(3), p.GyroSigma*p.GyroSigma),
		RGPS: matrix.Diagonal([]float64{
			p.GPSNorthSigma * p.GPSNorthSigma,
			p.GPSEastSigma * p.GPSEastSigma,
			p.GPSVgSigma * p.GPSVgSigma,
			p.GPSCourseSigma * p.GPSCourseSigma,
		}),
		RPseudo: matrix.Scaled(matrix.Eye(2), p.PseudoWindSigma2),
		N:       p.PositionSubsteps,
		Ts:      p.TsControl / float64(p.PositionSubsteps),
		MinVg:   p.MinGroundSpeed,
		g:       p.Gravity,
	}
}

func headingRate(u positionInputs) float64 {
	sphi, cphi := math.Sincos(u.phi)
	ctheta := math.Cos(u.theta)
	return u.q*sphi/ctheta + u.r*cphi/ctheta
}

func positionDynamics(x []float64, u positionInputs) []float64 {
	vg, chi, wn, we, psi := x[iVg], x[iChi], x[iWn], x[iWe], x[iPsi]
	schi, cchi := math.Sincos(chi)
	spsi, cpsi := math.Sincos(psi)
	psidot := headingRate(u)
	vgdot := ((u.va*cpsi+wn)*(-u.va*psidot*spsi) + (u.va*spsi+we)*(u.va*psidot*cpsi)) / vg
	return []float64{
		vg * cchi,
		vg * schi,
		vgdot,
		u.g / vg * math.Tan(u.phi) * math.Cos(chi-psi),
		0,
		0,
		psidot,
	}
}

func windTriangle(x []float64, u positionInputs) []float64 {
	vg, chi, wn, we, psi := x[iVg], x[iChi], x[iWn], x[iWe], x[iPsi]
	return []float64{
		u.va*math.Cos(psi) + wn - vg*math.Cos(chi),
		u.va*math.Sin(psi) + we - vg*math.Sin(chi),
	}
}

func gpsModel(x []float64, _ positionInputs) []float64 {
	return []float64{x[iPn], x[iPe], x[iVg], x[iChi]}
}

// positionGyroCoupling maps q, r gyro noise into the states whose dynamics
// read them: psi' directly and Vg' through psi'. Roll is the attitude
// estimate's phi, as in the heading-rate kinematics.
func positionGyroCoupling(x []float64, u positionInputs) *matrix.DenseMatrix {
	sphi, cphi := math.Sincos(u.phi)
	ctheta := math.Cos(u.theta)
	spsi, cpsi := math.Sincos(x[iPsi])
	// dVg'/dpsi'
	k := u.va * (x[iWe]*cpsi - x[iWn]*spsi) / x[iVg]

	g := matrix.Zeros(nPosition, 3)
	g.Set(iVg, 1, k*sphi/ctheta)
	g.Set(iVg, 2, k*cphi/ctheta)
	g.Set(iPsi, 1, sphi/ctheta)
	g.Set(iPsi, 2, cphi/ctheta)
	return g
}

// Update runs one control tick: propagate, apply the wind triangle, and apply
// the GPS fix in m if it differs from the last one used. If any phase fails
// the filter is rolled back and s is left alone.
func (k *PositionEKF) Update(s *EstimatedState, m *SensorMeasurement) error {
	xhat, p := k.Xhat, k.P
	if err := k.Predict(s); err != nil {
		return err
	}
	if err := k.CorrectPseudo(s); err != nil {
		k.Xhat, k.P = xhat, p
		return err
	}
	if _, err := k.CorrectGPS(s, m.GPS); err != nil {
		k.Xhat, k.P = xhat, p
		return err
	}

	s.North = k.Xhat.Get(iPn, 0)
	s.East = k.Xhat.Get(iPe, 0)
	s.Vg = k.Xhat.Get(iVg, 0)
	s.Chi = k.Xhat.Get(iChi, 0)
	s.Wn = k.Xhat.Get(iWn, 0)
	s.We = k.Xhat.Get(iWe, 0)
	s.Psi = k.Xhat.Get(iPsi, 0)
	return nil
}

// Predict integrates the kinematics over one control period in N Euler
// substeps. It fails with ErrNumericalInstability, leaving the filter
// untouched, if the ground speed drops below MinVg.
func (k *PositionEKF) Predict(s *EstimatedState) error {
	u := s.positionInputs(k.g)
	x := linalg.Column(k.Xhat)
	p := k.P

	for i := 0; i < k.N; i++ {
		if err := k.checkVg(x[iVg]); err != nil {
			return err
		}
		g := positionGyroCoupling(x, u)
		xdot := positionDynamics(x, u)
		for j := range x {
			x[j] += k.Ts * xdot[j]
		}
		if err := k.checkVg(x[iVg]); err != nil {
			return err
		}

		a := linalg.Jacobian(positionDynamics, x, u)
		p = riccatiStep(p, a, g, k.QGyro, k.Q, k.Ts)
	}

	if !allFinite(x) || !matrixFinite(p) {
		return errorf("position propagation", ErrNumericalInstability)
	}
	k.Xhat = linalg.Vector(x...)
	k.P = linalg.Symmetrize(p)
	return nil
}

func (k *PositionEKF) checkVg(vg float64) error {
	if math.IsNaN(vg) || math.Abs(vg) < k.MinVg {
		return fmt.Errorf("position propagation: ground speed %.3g m/s: %w", vg, ErrNumericalInstability)
	}
	return nil
}

// CorrectPseudo applies the wind triangle closure as a zero-valued measurement.
func (k *PositionEKF) CorrectPseudo(s *EstimatedState) error {
	c, err := kalmanCorrect(k.Xhat, k.P, windTriangle, s.positionInputs(k.g), []float64{0, 0}, k.RPseudo)
	if err != nil {
		return errorf("position wind triangle correction", err)
	}
	k.Xhat, k.P = c.xhat, c.p
	return nil
}

// NewFix reports whether fix differs from the last fix applied.
func (k *PositionEKF) NewFix(fix GPSFix) bool {
	return !k.haveFix || fix != k.lastFix
}

// CorrectGPS applies fix if it is new and reports whether it did. The measured
// course is wrapped to within π of the predicted course first.
func (k *PositionEKF) CorrectGPS(s *EstimatedState, fix GPSFix) (bool, error) {
	if !k.NewFix(fix) {
		return false, nil
	}
	y := []float64{fix.North, fix.East, fix.Vg, Wrap(fix.Course, k.Xhat.Get(iChi, 0))}
	c, err := kalmanCorrect(k.Xhat, k.P, gpsModel, s.positionInputs(k.g), y, k.RGPS)
	if err != nil {
		return false, errorf("position GPS correction", err)
	}
	k.Xhat, k.P = c.xhat, c.p
	k.lastFix, k.haveFix = fix, true
	return true, nil
}

// Uncertainty returns the standard deviations of the seven position states.
func (k *PositionEKF) Uncertainty() [nPosition]float64 {
	var d [nPosition]float64
	copy(d[:], stdDevs(k.P))
	return d
}

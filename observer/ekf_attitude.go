package observer

import (
	"log"
	"math"

	"github.com/skelterjohn/go.matrix"

	"github.com/westphae/fwobserver/linalg"
)

/*
AttitudeEKF is a continuous-discrete EKF for roll and pitch.

State x = [phi, theta]. Body rates p, q, r and airspeed Va are inputs, read
from the low-pass-filtered gyros and pitot, not estimated.

Equations of motion:

	phi'   = p + q*sin(phi)*tan(theta) + r*cos(phi)*tan(theta)
	theta' = q*cos(phi) - r*sin(phi)

Measurement prediction (accelerometer, gravity plus centripetal terms):

	a1 = q*Va*sin(theta) + g*sin(theta)
	a2 = r*Va*cos(theta) - p*Va*sin(theta) - g*cos(theta)*sin(phi)
	a3 = -q*Va*cos(theta) - g*cos(theta)*cos(phi)
*/
type AttitudeEKF struct {
	Xhat *matrix.DenseMatrix // [phi, theta]ᵀ, rad
	P    *matrix.DenseMatrix // Covariance of Xhat

	Q      *matrix.DenseMatrix // Process noise of phi, theta
	QGyro  *matrix.DenseMatrix // Gyro noise covariance
	RAccel *matrix.DenseMatrix // Accelerometer noise covariance

	N    int     // Propagation substeps per control tick
	Ts   float64 // Substep length, s
	Gate float64 // Squared Mahalanobis gate on accel innovations, 0 disables

	Rejected int // Accel corrections rejected by the gate

	g float64
}

// NewAttitudeEKF returns an attitude filter at phi = theta = 0 with the prior
// and noise levels in p.
func NewAttitudeEKF(p Params) *AttitudeEKF {
	return &AttitudeEKF{
		Xhat:   linalg.Vector(0, 0),
		P:      matrix.Scaled(matrix.Eye(2), p.AttitudeP0),
		Q:      matrix.Scaled(matrix.Eye(2), p.AttitudeQ),
		QGyro:  matrix.Scaled(matrix.Eye(3), p.GyroSigma*p.GyroSigma),
		RAccel: matrix.Scaled(matrix.Eye(3), p.AccelSigma*p.AccelSigma),
		N:      p.AttitudeSubsteps,
		Ts:     p.TsControl / float64(p.AttitudeSubsteps),
		Gate:   p.AccelGate,
		g:      p.Gravity,
	}
}

func attitudeDynamics(x []float64, u attitudeInputs) []float64 {
	sphi, cphi := math.Sincos(x[0])
	ttheta := math.Tan(x[1])
	return []float64{
		u.p + u.q*sphi*ttheta + u.r*cphi*ttheta,
		u.q*cphi - u.r*sphi,
	}
}

func attitudeAccel(x []float64, u attitudeInputs) []float64 {
	sphi, cphi := math.Sincos(x[0])
	stheta, ctheta := math.Sincos(x[1])
	return []float64{
		u.q*u.va*stheta + u.g*stheta,
		u.r*u.va*ctheta - u.p*u.va*stheta - u.g*ctheta*sphi,
		-u.q*u.va*ctheta - u.g*ctheta*cphi,
	}
}

// gyroCoupling maps gyro noise into phi', theta'.
func gyroCoupling(phi, theta float64) *matrix.DenseMatrix {
	sphi, cphi := math.Sincos(phi)
	ttheta := math.Tan(theta)
	return matrix.MakeDenseMatrix([]float64{
		1, sphi * ttheta, cphi * ttheta,
		0, cphi, -sphi,
	}, 2, 3)
}

// Update runs one control tick: propagate, then correct with the accelerometer.
// If either phase fails the filter is rolled back and s is left alone.
func (k *AttitudeEKF) Update(s *EstimatedState, ax, ay, az float64) error {
	xhat, p := k.Xhat, k.P
	if err := k.Predict(s); err != nil {
		return err
	}
	if _, err := k.Correct(s, ax, ay, az); err != nil {
		k.Xhat, k.P = xhat, p
		return err
	}
	s.Phi = k.Xhat.Get(0, 0)
	s.Theta = k.Xhat.Get(1, 0)
	return nil
}

// Predict integrates the kinematics over one control period in N Euler
// substeps, propagating the covariance alongside.
func (k *AttitudeEKF) Predict(s *EstimatedState) error {
	u := s.attitudeInputs(k.g)
	x := linalg.Column(k.Xhat)
	p := k.P

	for i := 0; i < k.N; i++ {
		phi, theta := x[0], x[1]
		xdot := attitudeDynamics(x, u)
		x[0] += k.Ts * xdot[0]
		x[1] += k.Ts * xdot[1]

		a := linalg.Jacobian(attitudeDynamics, x, u)
		p = riccatiStep(p, a, gyroCoupling(phi, theta), k.QGyro, k.Q, k.Ts)
	}

	if !allFinite(x) || !matrixFinite(p) {
		return errorf("attitude propagation", ErrNumericalInstability)
	}
	k.Xhat = linalg.Vector(x...)
	k.P = linalg.Symmetrize(p)
	return nil
}

// Correct applies the accelerometer reading. It reports false without error
// when the gate is enabled and the innovation falls outside it.
func (k *AttitudeEKF) Correct(s *EstimatedState, ax, ay, az float64) (bool, error) {
	u := s.attitudeInputs(k.g)
	c, err := kalmanCorrect(k.Xhat, k.P, attitudeAccel, u, []float64{ax, ay, az}, k.RAccel)
	if err != nil {
		return false, errorf("attitude accel correction", err)
	}
	if k.Gate > 0 && c.mahalanobis > k.Gate {
		k.Rejected++
		log.Printf("Observer: accel innovation %.3g exceeds gate %.3g, skipping correction\n",
			c.mahalanobis, k.Gate)
		return false, nil
	}
	k.Xhat, k.P = c.xhat, c.p
	return true, nil
}

// Uncertainty returns the standard deviations of phi and theta.
func (k *AttitudeEKF) Uncertainty() (dphi, dtheta float64) {
	d := stdDevs(k.P)
	return d[0], d[1]
}

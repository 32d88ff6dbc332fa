package observer

import (
	"fmt"
	"math"

	"github.com/skelterjohn/go.matrix"
)

// Observer turns raw sensor readings into an EstimatedState once per control
// tick. It owns its filters and the state record exclusively; Update is not
// safe for concurrent use.
type Observer struct {
	params Params
	state  *EstimatedState
	meas   SensorMeasurement // Last measurement passed to Update

	gyroX, gyroY, gyroZ    *LowPassFilter
	accelX, accelY, accelZ *LowPassFilter
	staticPres, diffPres   *LowPassFilter

	attitude *AttitudeEKF
	position *PositionEKF

	logMap map[string]interface{}
}

// NewObserver builds an Observer from explicit parameters, an initial state
// and an initial measurement that seeds every low-pass filter.
func NewObserver(p Params, initial EstimatedState, m SensorMeasurement) (*Observer, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	o := &Observer{params: p}
	o.Reset(initial, m)
	return o, nil
}

// Reset discards all filter memory and restarts from initial and m.
func (o *Observer) Reset(initial EstimatedState, m SensorMeasurement) {
	p := o.params
	if o.state == nil {
		o.state = new(EstimatedState)
	}
	*o.state = initial
	o.meas = m

	o.gyroX = NewLowPassFilter(p.GyroAlpha, m.GyroX)
	o.gyroY = NewLowPassFilter(p.GyroAlpha, m.GyroY)
	o.gyroZ = NewLowPassFilter(p.GyroAlpha, m.GyroZ)
	o.accelX = NewLowPassFilter(p.AccelAlpha, m.AccelX)
	o.accelY = NewLowPassFilter(p.AccelAlpha, m.AccelY)
	o.accelZ = NewLowPassFilter(p.AccelAlpha, m.AccelZ)
	o.staticPres = NewLowPassFilter(p.StaticPresAlpha, m.StaticPressure)
	o.diffPres = NewLowPassFilter(p.DiffPresAlpha, m.DiffPressure)

	o.attitude = NewAttitudeEKF(p)
	o.position = NewPositionEKF(p)

	o.logMap = make(map[string]interface{})
	o.updateLogMap()
}

// Update folds in one control tick's measurement and returns the estimate.
// The returned pointer is the Observer's own record, overwritten in place on
// every call.
//
// On error the tick is discarded as a whole: the record keeps the last good
// estimate, and the low-pass filters and both EKFs are rolled back to where
// they were before the call.
func (o *Observer) Update(m *SensorMeasurement) (*EstimatedState, error) {
	p := o.params
	o.meas = *m
	next := *o.state

	lpfs := o.lowPassFilters()
	saved := make([]float64, len(lpfs))
	for i, f := range lpfs {
		saved[i] = f.Y
	}
	attX, attP := o.attitude.Xhat, o.attitude.P
	rollback := func() {
		for i, f := range lpfs {
			f.Y = saved[i]
		}
		o.attitude.Xhat, o.attitude.P = attX, attP
	}

	next.P = o.gyroX.Update(m.GyroX) - next.Bx
	next.Q = o.gyroY.Update(m.GyroY) - next.By
	next.R = o.gyroZ.Update(m.GyroZ) - next.Bz
	ax := o.accelX.Update(m.AccelX)
	ay := o.accelY.Update(m.AccelY)
	az := o.accelZ.Update(m.AccelZ)

	next.Altitude = o.staticPres.Update(m.StaticPressure) / (p.Rho * p.Gravity)
	next.Va = math.Sqrt(2 / p.Rho * math.Max(0, o.diffPres.Update(m.DiffPressure)))

	if err := o.attitude.Update(&next, ax, ay, az); err != nil {
		rollback()
		return o.state, err
	}
	if err := o.position.Update(&next, m); err != nil {
		rollback()
		return o.state, err
	}

	// No angle-of-attack or sideslip sensor; biases are not estimated.
	next.Alpha = next.Theta
	next.Beta = 0
	next.Bx, next.By, next.Bz = 0, 0, 0

	*o.state = next
	o.updateLogMap()
	return o.state, nil
}

func (o *Observer) lowPassFilters() []*LowPassFilter {
	return []*LowPassFilter{
		o.gyroX, o.gyroY, o.gyroZ,
		o.accelX, o.accelY, o.accelZ,
		o.staticPres, o.diffPres,
	}
}

// State returns the Observer's estimate record.
func (o *Observer) State() *EstimatedState {
	return o.state
}

// Params returns the parameters the Observer was built with.
func (o *Observer) Params() Params {
	return o.params
}

// AttitudeUncertainty returns the standard deviations of roll and pitch, rad.
func (o *Observer) AttitudeUncertainty() (dphi, dtheta float64) {
	return o.attitude.Uncertainty()
}

// PositionUncertainty returns the standard deviations of
// [pn, pe, Vg, chi, wn, we, psi].
func (o *Observer) PositionUncertainty() [7]float64 {
	return o.position.Uncertainty()
}

// Covariances returns copies of the attitude and position covariance matrices.
func (o *Observer) Covariances() (attitude, position *matrix.DenseMatrix) {
	return o.attitude.P.Copy(), o.position.P.Copy()
}

// AccelRejections returns how many accelerometer corrections the gate has refused.
func (o *Observer) AccelRejections() int {
	return o.attitude.Rejected
}

// GetLogMap returns a map providing current state, measurement and uncertainty
// values for analysis. Angles are in degrees.
func (o *Observer) GetLogMap() map[string]interface{} {
	return o.logMap
}

func (o *Observer) updateLogMap() {
	s, m := o.state, &o.meas
	var logMap = map[string]float64{
		"North":    s.North,
		"East":     s.East,
		"Altitude": s.Altitude,
		"Roll":     s.Phi / Deg,
		"Pitch":    s.Theta / Deg,
		"Heading":  s.Psi / Deg,
		"Va":       s.Va,
		"Alpha":    s.Alpha / Deg,
		"P":        s.P / Deg,
		"Q":        s.Q / Deg,
		"R":        s.R / Deg,
		"Vg":       s.Vg,
		"Course":   s.Chi / Deg,
		"Wn":       s.Wn,
		"We":       s.We,

		"GyroX":  m.GyroX / Deg,
		"GyroY":  m.GyroY / Deg,
		"GyroZ":  m.GyroZ / Deg,
		"AccelX": m.AccelX,
		"AccelY": m.AccelY,
		"AccelZ": m.AccelZ,
		"PStat":  m.StaticPressure,
		"PDiff":  m.DiffPressure,
		"GPSN":   m.GPS.North,
		"GPSE":   m.GPS.East,
		"GPSVg":  m.GPS.Vg,
		"GPSChi": m.GPS.Course / Deg,
	}
	for k, v := range logMap {
		o.logMap[k] = v
	}

	dphi, dtheta := o.attitude.Uncertainty()
	o.logMap["RollVar"] = dphi / Deg
	o.logMap["PitchVar"] = dtheta / Deg
	for i, d := range o.position.Uncertainty() {
		o.logMap[fmt.Sprintf("PosSigma[%d]", i)] = d
	}
}

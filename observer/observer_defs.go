// Package observer estimates the navigation and attitude state of a fixed-wing
// aircraft from low-pass-filtered IMU, pressure and GPS readings, using two
// cascaded continuous-discrete extended Kalman filters.
//
// Frames follow the usual NED/body convention: body 1 is out the nose, 2 out
// the right wing, 3 down. All angles are radians and all speeds m/s.
package observer

import "math"

const (
	Pi  = math.Pi
	Deg = Pi / 180
)

// SensorMeasurement holds one control tick's worth of raw sensor readings.
// The GPS fields only change value when a new fix arrives; between fixes they
// repeat the previous fix.
type SensorMeasurement struct {
	GyroX, GyroY, GyroZ    float64 // Body rates, rad/s
	AccelX, AccelY, AccelZ float64 // Specific force, m/s²
	StaticPressure         float64 // Pa, relative to ground level
	DiffPressure           float64 // Pitot minus static, Pa
	GPS                    GPSFix
}

// GPSFix is the tuple reported by the GPS receiver.
type GPSFix struct {
	North, East float64 // Position, m
	Vg          float64 // Ground speed, m/s
	Course      float64 // Course over ground, rad
}

// EstimatedState is the record the Observer overwrites on every Update.
type EstimatedState struct {
	North, East     float64 // Inertial position, m
	Altitude        float64 // Height above ground, m
	Phi, Theta, Psi float64 // Roll, pitch, heading, rad
	Va              float64 // Airspeed, m/s
	Alpha, Beta     float64 // Angle of attack and sideslip, rad
	P, Q, R         float64 // Body rates, rad/s
	Vg              float64 // Ground speed, m/s
	Chi             float64 // Course angle, rad
	Wn, We          float64 // Wind, north and east components, m/s
	Bx, By, Bz      float64 // Gyro biases, rad/s (not estimated, held at zero)
}

// attitudeInputs are the quantities the attitude filter's models read but do
// not estimate.
type attitudeInputs struct {
	p, q, r float64
	va      float64
	g       float64
}

func (s *EstimatedState) attitudeInputs(g float64) attitudeInputs {
	return attitudeInputs{p: s.P, q: s.Q, r: s.R, va: s.Va, g: g}
}

// positionInputs are the quantities the position filter's models read from the
// attitude estimate and filtered sensors.
type positionInputs struct {
	phi, theta float64
	q, r       float64
	va         float64
	g          float64
}

func (s *EstimatedState) positionInputs(g float64) positionInputs {
	return positionInputs{phi: s.Phi, theta: s.Theta, q: s.Q, r: s.R, va: s.Va, g: g}
}

package obsweb

import (
	"time"

	"github.com/westphae/fwobserver/observer"
)

const Port = 8000

// EstimateData is the JSON record published for each control tick.
type EstimateData struct {
	T float64 // Wall-clock timestamp, s

	// Estimates
	North, East, Altitude float64 // m
	Roll, Pitch, Heading  float64 // °
	Va, Vg                float64 // m/s
	Course                float64 // °
	Wn, We                float64 // m/s
	P, Q, R               float64 // °/s

	// Estimate uncertainties (one standard deviation)
	DRoll, DPitch     float64 // °
	DNorth, DEast     float64 // m
	DVg               float64 // m/s
	DCourse, DHeading float64 // °
	DWn, DWe          float64 // m/s

	// Measurements
	A1, A2, A3        float64 // Accelerometer, m/s²
	B1, B2, B3        float64 // Gyro, °/s
	PStatic, PDiff    float64 // Pa
	GPSNorth, GPSEast float64 // m
	GPSVg             float64 // m/s
	GPSCourse         float64 // °
}

// NewEstimateData fills a record from the observer's current estimate and the
// measurement it last consumed.
func NewEstimateData(o *observer.Observer, m *observer.SensorMeasurement) *EstimateData {
	d := new(EstimateData)
	d.Update(o, m)
	return d
}

// Update overwrites d from the observer and measurement. Either may be nil.
func (d *EstimateData) Update(o *observer.Observer, m *observer.SensorMeasurement) {
	const deg = observer.Deg
	d.T = float64(time.Now().UnixNano()/1000) / 1e6

	if o != nil {
		s := o.State()
		d.North, d.East, d.Altitude = s.North, s.East, s.Altitude
		d.Roll, d.Pitch, d.Heading = s.Phi/deg, s.Theta/deg, s.Psi/deg
		d.Va, d.Vg, d.Course = s.Va, s.Vg, s.Chi/deg
		d.Wn, d.We = s.Wn, s.We
		d.P, d.Q, d.R = s.P/deg, s.Q/deg, s.R/deg

		dphi, dtheta := o.AttitudeUncertainty()
		d.DRoll, d.DPitch = dphi/deg, dtheta/deg
		u := o.PositionUncertainty()
		d.DNorth, d.DEast, d.DVg = u[0], u[1], u[2]
		d.DCourse = u[3] / deg
		d.DWn, d.DWe = u[4], u[5]
		d.DHeading = u[6] / deg
	}

	if m != nil {
		d.A1, d.A2, d.A3 = m.AccelX, m.AccelY, m.AccelZ
		d.B1, d.B2, d.B3 = m.GyroX/deg, m.GyroY/deg, m.GyroZ/deg
		d.PStatic, d.PDiff = m.StaticPressure, m.DiffPressure
		d.GPSNorth, d.GPSEast = m.GPS.North, m.GPS.East
		d.GPSVg, d.GPSCourse = m.GPS.Vg, m.GPS.Course/deg
	}
}

// Publisher is anything that can take a stream of estimate records.
type Publisher interface {
	Publish(d *EstimateData) error
	Close() error
}

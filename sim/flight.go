package sim

import (
	"math"
	"math/rand"

	"github.com/westphae/quaternion"

	"github.com/westphae/fwobserver/observer"
)

// Noise holds the standard deviations of the Gaussian noise added to each
// synthesized sensor. The zero value gives perfect sensors.
type Noise struct {
	Gyro      float64 // rad/s
	Accel     float64 // m/s²
	Static    float64 // Pa
	Diff      float64 // Pa
	GPSNorth  float64 // m
	GPSEast   float64 // m
	GPSVg     float64 // m/s
	GPSCourse float64 // rad
}

// NoiseFromParams returns the noise levels the observer is tuned for.
func NoiseFromParams(p observer.Params) Noise {
	return Noise{
		Gyro:      p.GyroSigma,
		Accel:     p.AccelSigma,
		Static:    p.StaticPresSigma,
		Diff:      p.DiffPresSigma,
		GPSNorth:  p.GPSNorthSigma,
		GPSEast:   p.GPSEastSigma,
		GPSVg:     p.GPSVgSigma,
		GPSCourse: p.GPSCourseSigma,
	}
}

// Flight steps through a Situation at a fixed rate, integrating position and
// producing the sensor readings of each tick. GPS fixes arrive every GPSPeriod
// and are held in between, as a receiver reports them.
type Flight struct {
	Sit       Situation
	Ts        float64 // Control period, s
	GPSPeriod float64 // s
	Rho       float64 // Air density, kg/m³
	Gravity   float64 // m/s²
	Noise     Noise

	rng   *rand.Rand
	t     float64
	tGPS  float64 // Time of the next fix
	north float64
	east  float64
	fix   observer.GPSFix
}

// NewFlight prepares a Flight over sit with the rates and constants in p.
// The seed fixes the noise sequence.
func NewFlight(sit Situation, p observer.Params, gpsPeriod float64, noise Noise, seed int64) *Flight {
	return &Flight{
		Sit:       sit,
		Ts:        p.TsControl,
		GPSPeriod: gpsPeriod,
		Rho:       p.Rho,
		Gravity:   p.Gravity,
		Noise:     noise,
		rng:       rand.New(rand.NewSource(seed)),
		t:         sit.BeginTime(),
		tGPS:      sit.BeginTime(),
	}
}

// Time returns the time of the next tick.
func (f *Flight) Time() float64 {
	return f.t
}

// Next fills in the truth and the measurement for the current tick and
// advances one control period. It returns ErrOutOfRange once the situation
// is exhausted.
func (f *Flight) Next(x *Truth, m *observer.SensorMeasurement) error {
	if err := f.Sit.Interpolate(f.t, x); err != nil {
		return err
	}
	x.North, x.East = f.north, f.east

	f.sense(x, m)

	if f.t >= f.tGPS-1e-9 {
		f.fix = observer.GPSFix{
			North:  x.North + f.Noise.GPSNorth*f.rng.NormFloat64(),
			East:   x.East + f.Noise.GPSEast*f.rng.NormFloat64(),
			Vg:     x.Vg + f.Noise.GPSVg*f.rng.NormFloat64(),
			Course: x.Chi + f.Noise.GPSCourse*f.rng.NormFloat64(),
		}
		f.tGPS += f.GPSPeriod
	}
	m.GPS = f.fix

	// Advance position to the next tick with the midpoint ground velocity.
	var mid Truth
	tm := math.Min(f.t+f.Ts/2, f.Sit.EndTime())
	if err := f.Sit.Interpolate(tm, &mid); err != nil {
		return err
	}
	f.north += f.Ts * mid.Vg * math.Cos(mid.Chi)
	f.east += f.Ts * mid.Vg * math.Sin(mid.Chi)
	f.t += f.Ts
	return nil
}

// sense synthesizes IMU and pressure readings from the true state.
func (f *Flight) sense(x *Truth, m *observer.SensorMeasurement) {
	n := &f.Noise
	p, q, r := x.BodyRates()
	m.GyroX = p + n.Gyro*f.rng.NormFloat64()
	m.GyroY = q + n.Gyro*f.rng.NormFloat64()
	m.GyroZ = r + n.Gyro*f.rng.NormFloat64()

	// Specific force is the centripetal acceleration of flight along body 1
	// less gravity.
	g := BodyGravity(x.Phi, x.Theta, x.Psi, f.Gravity)
	m.AccelX = -g[0] + n.Accel*f.rng.NormFloat64()
	m.AccelY = r*x.Va - g[1] + n.Accel*f.rng.NormFloat64()
	m.AccelZ = -q*x.Va - g[2] + n.Accel*f.rng.NormFloat64()

	m.StaticPressure = f.Rho*f.Gravity*x.Altitude + n.Static*f.rng.NormFloat64()
	m.DiffPressure = f.Rho*x.Va*x.Va/2 + n.Diff*f.rng.NormFloat64()
}

// BodyGravity returns the gravity vector, magnitude g, resolved in body axes.
func BodyGravity(phi, theta, psi, g float64) [3]float64 {
	e := quaternion.FromEuler(phi, theta, psi)
	b := e.Conj().RotateVec3(quaternion.Vec3{Z: g})
	return [3]float64{b.X, b.Y, b.Z}
}

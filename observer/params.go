package observer

import (
	"encoding/json"
	"fmt"
	"io"
)

// Params carries every tunable the Observer consumes. Nothing is read from
// package globals; build one with DefaultParams and override what differs.
type Params struct {
	TsControl float64 `json:"ts_control"` // Control loop period, s
	Rho       float64 `json:"rho"`        // Air density, kg/m³
	Gravity   float64 `json:"gravity"`    // m/s²

	// Sensor noise standard deviations
	GyroSigma        float64 `json:"gyro_sigma"`         // rad/s
	AccelSigma       float64 `json:"accel_sigma"`        // m/s²
	StaticPresSigma  float64 `json:"static_pres_sigma"`  // Pa
	DiffPresSigma    float64 `json:"diff_pres_sigma"`    // Pa
	GPSNorthSigma    float64 `json:"gps_n_sigma"`        // m
	GPSEastSigma     float64 `json:"gps_e_sigma"`        // m
	GPSVgSigma       float64 `json:"gps_vg_sigma"`       // m/s
	GPSCourseSigma   float64 `json:"gps_course_sigma"`   // rad
	PseudoWindSigma2 float64 `json:"pseudo_wind_sigma2"` // Wind triangle pseudo-measurement variance, (m/s)²

	// Low-pass smoothing coefficients, y = α·y + (1-α)·u
	GyroAlpha       float64 `json:"gyro_alpha"`
	AccelAlpha      float64 `json:"accel_alpha"`
	StaticPresAlpha float64 `json:"static_pres_alpha"`
	DiffPresAlpha   float64 `json:"diff_pres_alpha"`

	// Filter tuning
	AttitudeSubsteps int     `json:"attitude_substeps"`
	PositionSubsteps int     `json:"position_substeps"`
	AttitudeP0       float64 `json:"attitude_p0"` // Initial variance of phi, theta
	PositionP0       float64 `json:"position_p0"` // Initial variance of each position state
	AttitudeQ        float64 `json:"attitude_q"`  // Process noise of phi, theta
	PositionQ        float64 `json:"position_q"`  // Process noise of each position state
	InitialVg        float64 `json:"initial_vg"`  // Initial ground speed guess, m/s

	// AccelGate rejects accelerometer corrections whose squared Mahalanobis
	// distance exceeds it. Zero disables gating.
	AccelGate float64 `json:"accel_gate"`
	// MinGroundSpeed is the smallest |Vg| the position filter will divide by.
	MinGroundSpeed float64 `json:"min_ground_speed"`
}

// DefaultParams returns the Aerosonde UAV sensor suite at a 100 Hz control rate.
func DefaultParams() Params {
	return Params{
		TsControl: 0.01,
		Rho:       1.2682,
		Gravity:   9.81,

		GyroSigma:        0.13 * Deg,
		AccelSigma:       0.0025 * 9.81,
		StaticPresSigma:  10,
		DiffPresSigma:    2,
		GPSNorthSigma:    0.21,
		GPSEastSigma:     0.21,
		GPSVgSigma:       0.05,
		GPSCourseSigma:   0.05 / 10,
		PseudoWindSigma2: 0.01,

		GyroAlpha:       0.5,
		AccelAlpha:      0.5,
		StaticPresAlpha: 0.9,
		DiffPresAlpha:   0.5,

		AttitudeSubsteps: 10,
		PositionSubsteps: 25,
		AttitudeP0:       0.1,
		PositionP0:       0.5,
		AttitudeQ:        1e-6,
		PositionQ:        0.01,
		InitialVg:        25,

		AccelGate:      0,
		MinGroundSpeed: 0.1,
	}
}

// LoadParams reads JSON from r over the defaults, so a file only needs to
// name the values it changes.
func LoadParams(r io.Reader) (Params, error) {
	p := DefaultParams()
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return p, fmt.Errorf("decoding observer params: %w", err)
	}
	return p, p.Validate()
}

// Validate checks that p describes a usable filter.
func (p Params) Validate() error {
	switch {
	case p.TsControl <= 0:
		return fmt.Errorf("%w: ts_control must be positive, got %g", ErrInvalidParams, p.TsControl)
	case p.Rho <= 0:
		return fmt.Errorf("%w: rho must be positive, got %g", ErrInvalidParams, p.Rho)
	case p.Gravity <= 0:
		return fmt.Errorf("%w: gravity must be positive, got %g", ErrInvalidParams, p.Gravity)
	case p.AttitudeSubsteps < 1 || p.PositionSubsteps < 1:
		return fmt.Errorf("%w: substeps must be at least 1, got %d and %d",
			ErrInvalidParams, p.AttitudeSubsteps, p.PositionSubsteps)
	case p.MinGroundSpeed < 0 || p.AccelGate < 0:
		return fmt.Errorf("%w: min_ground_speed and accel_gate must not be negative", ErrInvalidParams)
	}
	for name, a := range map[string]float64{
		"gyro_alpha":        p.GyroAlpha,
		"accel_alpha":       p.AccelAlpha,
		"static_pres_alpha": p.StaticPresAlpha,
		"diff_pres_alpha":   p.DiffPresAlpha,
	} {
		if a < 0 || a > 1 {
			return fmt.Errorf("%w: %s must lie in [0, 1], got %g", ErrInvalidParams, name, a)
		}
	}
	return nil
}

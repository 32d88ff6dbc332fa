package observer

// LowPassFilter is a first-order exponential smoother for one sensor channel:
// y[k] = α·y[k-1] + (1-α)·u[k]. Alpha close to 1 smooths heavily.
type LowPassFilter struct {
	Alpha float64
	Y     float64
}

// NewLowPassFilter returns a filter with coefficient alpha whose output starts at y0.
func NewLowPassFilter(alpha, y0 float64) *LowPassFilter {
	return &LowPassFilter{Alpha: alpha, Y: y0}
}

// Update folds in the raw reading u and returns the new output.
func (f *LowPassFilter) Update(u float64) float64 {
	f.Y = f.Alpha*f.Y + (1-f.Alpha)*u
	return f.Y
}

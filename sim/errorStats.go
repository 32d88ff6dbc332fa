package sim

import (
	"fmt"
	"io"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/westphae/fwobserver/observer"
)

// ErrorStats accumulates estimate-minus-truth errors per channel over a run.
type ErrorStats struct {
	errs map[string][]float64
}

// Summary describes the error of one channel over a run.
type Summary struct {
	Channel string
	N       int
	Mean    float64
	StdDev  float64
	RMS     float64
	MaxAbs  float64
}

func NewErrorStats() *ErrorStats {
	return &ErrorStats{errs: make(map[string][]float64)}
}

// Add records the errors of one tick. Angles are wrapped so that a heading of
// 359° against a truth of 1° counts as 2°.
func (e *ErrorStats) Add(s *observer.EstimatedState, x *Truth) {
	angle := func(est, tru float64) float64 { return observer.Wrap(est, tru) - tru }
	for k, v := range map[string]float64{
		"North":    s.North - x.North,
		"East":     s.East - x.East,
		"Altitude": s.Altitude - x.Altitude,
		"Roll":     angle(s.Phi, x.Phi) / observer.Deg,
		"Pitch":    angle(s.Theta, x.Theta) / observer.Deg,
		"Heading":  angle(s.Psi, x.Psi) / observer.Deg,
		"Course":   angle(s.Chi, x.Chi) / observer.Deg,
		"Va":       s.Va - x.Va,
		"Vg":       s.Vg - x.Vg,
		"Wn":       s.Wn - x.Wn,
		"We":       s.We - x.We,
	} {
		e.errs[k] = append(e.errs[k], v)
	}
}

// Summarize returns one Summary per channel, sorted by channel name,
// ignoring the first skip samples of each so filter start-up does not dominate.
func (e *ErrorStats) Summarize(skip int) []Summary {
	var out []Summary
	for k, v := range e.errs {
		if skip < len(v) {
			v = v[skip:]
		} else {
			v = nil
		}
		if len(v) == 0 {
			continue
		}
		mean, std := stat.MeanStdDev(v, nil)
		var ss, mx float64
		for _, x := range v {
			ss += x * x
			mx = math.Max(mx, math.Abs(x))
		}
		out = append(out, Summary{
			Channel: k,
			N:       len(v),
			Mean:    mean,
			StdDev:  std,
			RMS:     math.Sqrt(ss / float64(len(v))),
			MaxAbs:  mx,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}

// Print writes a table of summaries to w.
func Print(w io.Writer, sums []Summary) {
	fmt.Fprintf(w, "%-10s %8s %10s %10s %10s %10s\n", "Channel", "N", "Mean", "StdDev", "RMS", "MaxAbs")
	for _, s := range sums {
		fmt.Fprintf(w, "%-10s %8d %10.4f %10.4f %10.4f %10.4f\n", s.Channel, s.N, s.Mean, s.StdDev, s.RMS, s.MaxAbs)
	}
}

// Package linalg holds the matrix utilities shared by the estimators:
// finite-difference linearization, guarded inversion and covariance upkeep.
package linalg

import (
	"github.com/skelterjohn/go.matrix"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// Step is the perturbation applied to each state component when linearizing.
const Step = 0.01

// VectorFunc is a vector-valued function of the state x. The inputs u are
// read-only and carry whatever else the function depends on (rates, airspeed...).
type VectorFunc[U any] func(x []float64, u U) []float64

// Jacobian linearizes f about x by forward differences, returning the m×n
// matrix whose column i is (f(x+Step*e_i, u) - f(x, u))/Step.
// It does not modify x and holds no state, so concurrent callers are safe.
func Jacobian[U any](f VectorFunc[U], x []float64, u U) *matrix.DenseMatrix {
	y0 := f(x, u)
	jac := mat.NewDense(len(y0), len(x), nil)
	fd.Jacobian(jac,
		func(y, xx []float64) { copy(y, f(xx, u)) },
		x,
		&fd.JacobianSettings{
			Formula:     fd.Forward,
			OriginValue: y0,
			Step:        Step,
		})
	return FromDense(jac)
}

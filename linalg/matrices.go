package linalg

import (
	"fmt"
	"math"

	"github.com/skelterjohn/go.matrix"
	"gonum.org/v1/gonum/mat"
)

// PSDTolerance is how far below zero the smallest eigenvalue of a covariance
// may fall before it is projected back onto the PSD cone.
const PSDTolerance = 1e-9

// Vector returns v as a column vector.
func Vector(v ...float64) *matrix.DenseMatrix {
	x := matrix.Zeros(len(v), 1)
	for i, vi := range v {
		x.Set(i, 0, vi)
	}
	return x
}

// Column returns the first column of a as a fresh slice.
func Column(a *matrix.DenseMatrix) []float64 {
	v := make([]float64, a.Rows())
	for i := range v {
		v[i] = a.Get(i, 0)
	}
	return v
}

// ToDense copies a into a gonum matrix.
func ToDense(a *matrix.DenseMatrix) *mat.Dense {
	r, c := a.Rows(), a.Cols()
	d := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d.Set(i, j, a.Get(i, j))
		}
	}
	return d
}

// FromDense copies a gonum matrix into a go.matrix DenseMatrix.
func FromDense(d mat.Matrix) *matrix.DenseMatrix {
	r, c := d.Dims()
	a := matrix.Zeros(r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			a.Set(i, j, d.At(i, j))
		}
	}
	return a
}

// Invert returns the inverse of the square matrix a. It fails with
// ErrSingularMatrix when a is singular or its condition number is too large
// for the inverse to carry any precision.
func Invert(a *matrix.DenseMatrix) (*matrix.DenseMatrix, error) {
	if a.Rows() != a.Cols() {
		return nil, fmt.Errorf("cannot invert %dx%d matrix: %w", a.Rows(), a.Cols(), ErrSingularMatrix)
	}
	var inv mat.Dense
	if err := inv.Inverse(ToDense(a)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularMatrix, err)
	}
	if !finite(&inv) {
		return nil, fmt.Errorf("%w: non-finite inverse", ErrSingularMatrix)
	}
	return FromDense(&inv), nil
}

// Discretize returns the second-order transition matrix I + A*ts + A²*ts²/2.
func Discretize(a *matrix.DenseMatrix, ts float64) *matrix.DenseMatrix {
	return matrix.Sum(
		matrix.Eye(a.Rows()),
		matrix.Scaled(a, ts),
		matrix.Scaled(matrix.Product(a, a), ts*ts/2),
	)
}

// Symmetrize returns (a + aᵀ)/2.
func Symmetrize(a *matrix.DenseMatrix) *matrix.DenseMatrix {
	n := a.Rows()
	s := matrix.Zeros(n, n)
	for i := 0; i < n; i++ {
		s.Set(i, i, a.Get(i, i))
		for j := i + 1; j < n; j++ {
			v := (a.Get(i, j) + a.Get(j, i)) / 2
			s.Set(i, j, v)
			s.Set(j, i, v)
		}
	}
	return s
}

// MinEigenvalue returns the smallest eigenvalue of the symmetric part of a.
func MinEigenvalue(a *matrix.DenseMatrix) (float64, bool) {
	var eig mat.EigenSym
	if ok := eig.Factorize(toSym(a), false); !ok {
		return math.NaN(), false
	}
	vals := eig.Values(nil)
	lo := vals[0]
	for _, v := range vals[1:] {
		lo = math.Min(lo, v)
	}
	return lo, true
}

// IsPSD reports whether a is symmetric and positive semi-definite to within tol.
func IsPSD(a *matrix.DenseMatrix, tol float64) bool {
	n := a.Rows()
	if n != a.Cols() {
		return false
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if math.Abs(a.Get(i, j)-a.Get(j, i)) > tol*math.Max(1, math.Abs(a.Get(i, j))) {
				return false
			}
		}
	}
	lo, ok := MinEigenvalue(a)
	return ok && lo >= -tol
}

// NearestPSD symmetrizes a and, if it has eigenvalues below -PSDTolerance,
// clamps them to zero. The second return reports whether clamping happened.
func NearestPSD(a *matrix.DenseMatrix) (*matrix.DenseMatrix, bool) {
	s := Symmetrize(a)
	var eig mat.EigenSym
	if ok := eig.Factorize(toSym(s), true); !ok {
		return s, false
	}
	vals := eig.Values(nil)
	clamp := false
	for i, v := range vals {
		if v < -PSDTolerance {
			clamp = true
		}
		if v < 0 {
			vals[i] = 0
		}
	}
	if !clamp {
		return s, false
	}

	var vecs, vd, out mat.Dense
	eig.VectorsTo(&vecs)
	vd.Mul(&vecs, mat.NewDiagDense(len(vals), vals))
	out.Mul(&vd, vecs.T())
	return Symmetrize(FromDense(&out)), true
}

func toSym(a *matrix.DenseMatrix) *mat.SymDense {
	n := a.Rows()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, (a.Get(i, j)+a.Get(j, i))/2)
		}
	}
	return s
}

func finite(d mat.Matrix) bool {
	r, c := d.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := d.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

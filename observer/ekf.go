package observer

import (
	"fmt"
	"log"
	"math"

	"github.com/skelterjohn/go.matrix"

	"github.com/westphae/fwobserver/linalg"
)

// correction is the outcome of one measurement update, not yet committed.
type correction struct {
	xhat, p     *matrix.DenseMatrix
	innovation  []float64
	mahalanobis float64 // Squared Mahalanobis distance of the innovation
}

// kalmanCorrect runs the linearized measurement update for measurement y with
// model h and noise r against the estimate (xhat, p). Neither input is
// modified; the caller decides whether to keep the result.
func kalmanCorrect[U any](xhat, p *matrix.DenseMatrix, h linalg.VectorFunc[U], u U,
	y []float64, r *matrix.DenseMatrix) (*correction, error) {
	x := linalg.Column(xhat)
	hx := h(x, u)
	c := linalg.Jacobian(h, x, u)

	ss := matrix.Sum(r, matrix.Product(c, p, c.Transpose()))
	ssInv, err := linalg.Invert(ss)
	if err != nil {
		return nil, err
	}

	inn := make([]float64, len(y))
	for i := range y {
		inn[i] = y[i] - hx[i]
	}
	dy := linalg.Vector(inn...)

	l := matrix.Product(p, c.Transpose(), ssInv)
	ilc := matrix.Difference(matrix.Eye(xhat.Rows()), matrix.Product(l, c))
	pNew := matrix.Sum(
		matrix.Product(ilc, p, ilc.Transpose()),
		matrix.Product(l, r, l.Transpose()),
	)

	pNew, clamped := linalg.NearestPSD(pNew)
	if clamped {
		log.Println("Observer: covariance lost positive semi-definiteness, projected back")
	}

	return &correction{
		xhat:        matrix.Sum(xhat, matrix.Product(l, dy)),
		p:           pNew,
		innovation:  inn,
		mahalanobis: matrix.Product(dy.Transpose(), ssInv, dy).Get(0, 0),
	}, nil
}

// riccatiStep advances the covariance one substep of length ts:
// P ← Ad·P·Adᵀ + Gd·Qg·Gdᵀ + Q·ts², with Ad = I + A·ts + A²·ts²/2 and Gd = G·ts.
func riccatiStep(p, a, g, qGyro, q *matrix.DenseMatrix, ts float64) *matrix.DenseMatrix {
	ad := linalg.Discretize(a, ts)
	gd := matrix.Scaled(g, ts)
	return matrix.Sum(
		matrix.Product(ad, p, ad.Transpose()),
		matrix.Product(gd, qGyro, gd.Transpose()),
		matrix.Scaled(q, ts*ts),
	)
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func matrixFinite(a *matrix.DenseMatrix) bool {
	for i := 0; i < a.Rows(); i++ {
		for j := 0; j < a.Cols(); j++ {
			if v := a.Get(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// stdDevs returns the square roots of the diagonal of p.
func stdDevs(p *matrix.DenseMatrix) []float64 {
	d := make([]float64, p.Rows())
	for i := range d {
		d[i] = math.Sqrt(math.Max(0, p.Get(i, i)))
	}
	return d
}

func errorf(stage string, err error) error {
	return fmt.Errorf("%s: %w", stage, err)
}

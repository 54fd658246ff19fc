package matrix

import (
	"fmt"
	"math"

	"github.com/milosgajdos/matrix"
	"gonum.org/v1/gonum/mat"
)

// MaxCond is the largest condition number accepted by InverseSPD.
const MaxCond = 1e12

// Eye returns n x n symmetric matrix with val on its diagonal.
// It returns error if n is non-positive.
func Eye(n int, val float64) (*mat.SymDense, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid matrix dimension: %d", n)
	}

	eye, err := matrix.NewDenseValIdentity(n, val)
	if err != nil {
		return nil, err
	}

	return Symmetrize(eye), nil
}

// Diag returns a symmetric matrix with vals on its diagonal.
func Diag(vals ...float64) *mat.SymDense {
	m := mat.NewSymDense(len(vals), nil)
	for i, v := range vals {
		m.SetSym(i, i, v)
	}

	return m
}

// BlockDiag returns block diagonal matrix with a in the top left
// corner and b in the bottom right corner.
func BlockDiag(a, b mat.Symmetric) *mat.SymDense {
	na, nb := a.SymmetricDim(), b.SymmetricDim()

	m := mat.NewSymDense(na+nb, nil)
	m.SliceSym(0, na).(*mat.SymDense).CopySym(a)
	if nb > 0 {
		m.SliceSym(na, na+nb).(*mat.SymDense).CopySym(b)
	}

	return m
}

// Sqrt returns lower triangular matrix L such that L*L' = m.
// It returns false if m is not positive definite.
func Sqrt(m mat.Symmetric) (*mat.TriDense, bool) {
	var chol mat.Cholesky
	if ok := chol.Factorize(m); !ok {
		return nil, false
	}

	l := &mat.TriDense{}
	chol.LTo(l)

	return l, true
}

// InverseSPD inverts symmetric positive definite matrix m.
// It returns false if m is not positive definite or if it is too ill-conditioned to invert.
func InverseSPD(m mat.Symmetric) (*mat.SymDense, bool) {
	var chol mat.Cholesky
	if ok := chol.Factorize(m); !ok {
		return nil, false
	}

	if chol.Cond() > MaxCond {
		return nil, false
	}

	inv := &mat.SymDense{}
	if err := chol.InverseTo(inv); err != nil {
		return nil, false
	}

	return inv, true
}

// WeightedMean returns weighted sum of the columns of x.
// It panics if the number of columns of x differs from len(w).
func WeightedMean(x mat.Matrix, w []float64) *mat.VecDense {
	rows, _ := x.Dims()
	mean := mat.NewVecDense(rows, nil)
	mean.MulVec(x, mat.NewVecDense(len(w), w))

	return mean
}

// WeightedCov returns weighted sum of outer products of the columns of d.
// It panics if the number of columns of d differs from len(w).
func WeightedCov(d *mat.Dense, w []float64) *mat.SymDense {
	rows, cols := d.Dims()
	if cols != len(w) {
		panic(fmt.Sprintf("weight count mismatch: %d != %d", cols, len(w)))
	}

	cov := mat.NewSymDense(rows, nil)
	for c := 0; c < cols; c++ {
		cov.SymRankOne(cov, w[c], d.ColView(c))
	}

	return cov
}

// WeightedCrossCov returns weighted sum of outer products of the columns of a and b.
// It panics if a and b column counts differ from len(w).
func WeightedCrossCov(a, b *mat.Dense, w []float64) *mat.Dense {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ca != len(w) || cb != len(w) {
		panic(fmt.Sprintf("weight count mismatch: %d, %d != %d", ca, cb, len(w)))
	}

	cov := mat.NewDense(ra, rb, nil)
	for c := 0; c < ca; c++ {
		cov.RankOne(cov, w[c], a.ColView(c), b.ColView(c))
	}

	return cov
}

// Symmetrize returns (m + m')/2.
// It panics if m is not square.
func Symmetrize(m mat.Matrix) *mat.SymDense {
	r, c := m.Dims()
	if r != c {
		panic(mat.ErrSquare)
	}

	s := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			s.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}

	return s
}

// IsFinite returns true if no element of m is NaN or Inf.
func IsFinite(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}

	return true
}

// Format returns m formatted for printing.
func Format(m mat.Matrix) fmt.Formatter {
	return matrix.Format(m)
}

// Package kalman contains measurement correction steps shared by Kalman filters.
package kalman

import (
	"fmt"

	fusion "github.com/milosgajdos/go-fusion"
	"github.com/milosgajdos/go-fusion/matrix"
	"gonum.org/v1/gonum/mat"
)

// Gain returns Kalman gain K = pxz * inv(s) and inverse of innovation covariance s.
// pxz is state-measurement cross covariance.
// It returns fusion.ErrSingularInnovation if s is not positive definite or is too ill-conditioned.
func Gain(pxz mat.Matrix, s mat.Symmetric) (*mat.Dense, *mat.SymDense, error) {
	_, c := pxz.Dims()
	if c != s.SymmetricDim() {
		return nil, nil, fmt.Errorf("invalid dimensions. Pxz cols: %d, S: %d x %d", c, s.SymmetricDim(), s.SymmetricDim())
	}

	sInv, ok := matrix.InverseSPD(s)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %v", fusion.ErrSingularInnovation, matrix.Format(s))
	}

	gain := &mat.Dense{}
	gain.Mul(pxz, sInv)

	return gain, sInv, nil
}

// NIS returns normalized innovation squared inn' * sInv * inn.
func NIS(inn mat.Vector, sInv mat.Symmetric) float64 {
	return mat.Inner(inn, sInv, inn)
}

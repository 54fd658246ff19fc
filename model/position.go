package model

import (
	"fmt"

	fusion "github.com/milosgajdos/go-fusion"
	"github.com/milosgajdos/go-fusion/matrix"
	"gonum.org/v1/gonum/mat"
)

// Position is a position sensor model: it measures [px, py] directly.
type Position struct {
	r *mat.SymDense
}

// NewPosition creates new position sensor model with the given measurement noise std devs.
// It returns error if either std dev is not positive.
func NewPosition(stdPx, stdPy float64) (*Position, error) {
	if stdPx <= 0 || stdPy <= 0 {
		return nil, fmt.Errorf("%w: position noise must be positive: %v, %v", fusion.ErrInvalidConfig, stdPx, stdPy)
	}

	return &Position{
		r: matrix.Diag(stdPx*stdPx, stdPy*stdPy),
	}, nil
}

// Observe returns position components of state x.
func (p *Position) Observe(x mat.Vector) (mat.Vector, error) {
	if x.Len() != StateDim {
		return nil, fmt.Errorf("invalid state vector length: %d", x.Len())
	}

	return mat.NewVecDense(2, []float64{x.AtVec(PX), x.AtVec(PY)}), nil
}

// Dim returns measurement dimension.
func (p *Position) Dim() int { return 2 }

// Cov returns measurement noise covariance.
func (p *Position) Cov() mat.Symmetric {
	cov := mat.NewSymDense(2, nil)
	cov.CopySym(p.r)

	return cov
}

// Residual stores a-b in dst.
func (p *Position) Residual(dst *mat.VecDense, a, b mat.Vector) {
	dst.SubVec(a, b)
}

// Init returns state [x, y, 0, 0, 0] from measurement z.
func (p *Position) Init(z mat.Vector) (mat.Vector, error) {
	if z.Len() != p.Dim() {
		return nil, fmt.Errorf("%w: invalid position measurement length: %d", fusion.ErrInvalidMeasurement, z.Len())
	}

	x := mat.NewVecDense(StateDim, nil)
	x.SetVec(PX, z.AtVec(0))
	x.SetVec(PY, z.AtVec(1))

	return x, nil
}

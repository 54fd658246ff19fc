package noise

import (
	"fmt"
	"math"

	"github.com/milosgajdos/go-fusion/matrix"
	"gonum.org/v1/gonum/mat"
)

// Diagonal is zero mean noise with independent components.
// Components with zero variance are degenerate and always sample to zero.
type Diagonal struct {
	// vars stores component variances
	vars []float64
	// idx stores indices of components with positive variance
	idx []int
	// g samples components with positive variance; nil if there are none
	g *Gaussian
}

// NewDiagonal creates new zero mean noise with independent components of variances vars.
// It returns error if vars is empty or if any variance is negative or not finite.
func NewDiagonal(vars []float64, seed uint64) (*Diagonal, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("invalid noise dimension: %d", len(vars))
	}

	var idx []int
	var pos []float64

	for i, v := range vars {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("invalid noise variance at %d: %v", i, v)
		}
		if v > 0 {
			idx = append(idx, i)
			pos = append(pos, v)
		}
	}

	d := &Diagonal{
		vars: append([]float64(nil), vars...),
		idx:  idx,
	}

	if len(pos) > 0 {
		g, err := NewGaussianWithSeed(make([]float64, len(pos)), matrix.Diag(pos...), seed)
		if err != nil {
			return nil, err
		}
		d.g = g
	}

	return d, nil
}

// Sample generates a sample and returns it.
func (d *Diagonal) Sample() mat.Vector {
	out := mat.NewVecDense(len(d.vars), nil)
	if d.g == nil {
		return out
	}

	s := d.g.Sample()
	for k, i := range d.idx {
		out.SetVec(i, s.AtVec(k))
	}

	return out
}

// Cov returns diagonal covariance matrix.
func (d *Diagonal) Cov() mat.Symmetric {
	return matrix.Diag(d.vars...)
}

// Mean returns zero mean.
func (d *Diagonal) Mean() []float64 {
	return make([]float64, len(d.vars))
}

// Reset resets the noise to its initial seed.
func (d *Diagonal) Reset() error {
	if d.g == nil {
		return nil
	}

	return d.g.Reset()
}

// String implements the Stringer interface.
func (d *Diagonal) String() string {
	return fmt.Sprintf("Diagonal{Var=%v}", d.vars)
}

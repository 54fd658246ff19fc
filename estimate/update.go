package estimate

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Update is an estimate corrected by a measurement.
// Besides the corrected state and covariance it carries the
// innovation statistics of the measurement which produced it.
type Update struct {
	*Base
	// inn is normalized innovation vector
	inn *mat.VecDense
	// s is innovation covariance
	s *mat.SymDense
	// nis is normalized innovation squared
	nis float64
}

// NewUpdate returns a new Update estimate.
// It returns error if the dimensions of its arguments are inconsistent.
func NewUpdate(val mat.Vector, cov mat.Symmetric, inn mat.Vector, s mat.Symmetric, nis float64) (*Update, error) {
	base, err := NewBaseWithCov(val, cov)
	if err != nil {
		return nil, err
	}

	if inn.Len() != s.SymmetricDim() {
		return nil, fmt.Errorf("invalid dimensions. Innovation: %d, Cov: %d x %d", inn.Len(), s.SymmetricDim(), s.SymmetricDim())
	}

	v := &mat.VecDense{}
	v.CloneFromVec(inn)

	c := mat.NewSymDense(s.SymmetricDim(), nil)
	c.CopySym(s)

	return &Update{
		Base: base,
		inn:  v,
		s:    c,
		nis:  nis,
	}, nil
}

// Innovation returns innovation vector
func (u *Update) Innovation() mat.Vector {
	v := &mat.VecDense{}
	v.CloneFromVec(u.inn)

	return v
}

// InnovationCov returns innovation covariance
func (u *Update) InnovationCov() mat.Symmetric {
	cov := mat.NewSymDense(u.s.SymmetricDim(), nil)
	cov.CopySym(u.s)

	return cov
}

// NIS returns normalized innovation squared
func (u *Update) NIS() float64 {
	return u.nis
}

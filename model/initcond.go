package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// InitCond implements fusion.InitCond
type InitCond struct {
	state *mat.VecDense
	cov   *mat.SymDense
}

// NewInitCond creates new InitCond and returns it.
// It returns error if state and cov dimensions don't match.
func NewInitCond(state mat.Vector, cov mat.Symmetric) (*InitCond, error) {
	if state.Len() != cov.SymmetricDim() {
		return nil, fmt.Errorf("invalid dimensions: state %d, cov %d", state.Len(), cov.SymmetricDim())
	}

	s := &mat.VecDense{}
	s.CloneFromVec(state)

	c := mat.NewSymDense(cov.SymmetricDim(), nil)
	c.CopySym(cov)

	return &InitCond{
		state: s,
		cov:   c,
	}, nil
}

// State returns initial state
func (c *InitCond) State() mat.Vector {
	state := &mat.VecDense{}
	state.CloneFromVec(c.state)

	return state
}

// Cov returns initial covariance
func (c *InitCond) Cov() mat.Symmetric {
	cov := mat.NewSymDense(c.cov.SymmetricDim(), nil)
	cov.CopySym(c.cov)

	return cov
}

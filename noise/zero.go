package noise

import "fmt"

// NewZero returns size dimensional noise which always samples to zero.
// It returns error if size is not positive.
func NewZero(size int) (*Diagonal, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid noise dimension: %d", size)
	}

	return NewDiagonal(make([]float64, size), 0)
}

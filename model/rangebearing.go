package model

import (
	"fmt"
	"math"

	fusion "github.com/milosgajdos/go-fusion"
	"github.com/milosgajdos/go-fusion/matrix"
	"gonum.org/v1/gonum/mat"
)

// MinRange is the smallest range the RangeBearing model can observe.
const MinRange = 1e-6

// RangeBearing measurement vector indices
const (
	// Range is distance to the object
	Range = iota
	// Bearing is angle of the line of sight
	Bearing
	// RangeRate is velocity projected onto the line of sight
	RangeRate
)

// RangeBearing is a range, bearing and range rate sensor model.
// The sensor sits at the origin of the state coordinate frame.
type RangeBearing struct {
	r *mat.SymDense
}

// NewRangeBearing creates new range/bearing sensor model with the given measurement noise std devs.
// It returns error if any std dev is not positive.
func NewRangeBearing(stdR, stdPhi, stdRd float64) (*RangeBearing, error) {
	if stdR <= 0 || stdPhi <= 0 || stdRd <= 0 {
		return nil, fmt.Errorf("%w: range-bearing noise must be positive: %v, %v, %v",
			fusion.ErrInvalidConfig, stdR, stdPhi, stdRd)
	}

	return &RangeBearing{
		r: matrix.Diag(stdR*stdR, stdPhi*stdPhi, stdRd*stdRd),
	}, nil
}

// Observe maps state x to [range, bearing, range rate].
// It returns fusion.ErrZeroRange if x lies at the sensor origin.
func (rb *RangeBearing) Observe(x mat.Vector) (mat.Vector, error) {
	if x.Len() != StateDim {
		return nil, fmt.Errorf("invalid state vector length: %d", x.Len())
	}

	px, py := x.AtVec(PX), x.AtVec(PY)
	v, yaw := x.AtVec(V), x.AtVec(Yaw)

	rho := math.Hypot(px, py)
	if rho < MinRange {
		return nil, fmt.Errorf("%w: position (%v, %v)", fusion.ErrZeroRange, px, py)
	}

	vx, vy := v*math.Cos(yaw), v*math.Sin(yaw)

	return mat.NewVecDense(3, []float64{
		rho,
		math.Atan2(py, px),
		(px*vx + py*vy) / rho,
	}), nil
}

// Dim returns measurement dimension.
func (rb *RangeBearing) Dim() int { return 3 }

// Cov returns measurement noise covariance.
func (rb *RangeBearing) Cov() mat.Symmetric {
	cov := mat.NewSymDense(3, nil)
	cov.CopySym(rb.r)

	return cov
}

// Residual stores a-b in dst and wraps the bearing difference into (-Pi, Pi].
func (rb *RangeBearing) Residual(dst *mat.VecDense, a, b mat.Vector) {
	dst.SubVec(a, b)
	dst.SetVec(Bearing, NormalizeAngle(dst.AtVec(Bearing)))
}

// Init recovers state from measurement z.
// Position is recovered from range and bearing, speed from the range rate
// decomposed along the bearing. Heading and heading rate are not observable
// from a single measurement and are set to zero.
func (rb *RangeBearing) Init(z mat.Vector) (mat.Vector, error) {
	if z.Len() != rb.Dim() {
		return nil, fmt.Errorf("%w: invalid range-bearing measurement length: %d", fusion.ErrInvalidMeasurement, z.Len())
	}

	rho, phi, rhod := z.AtVec(Range), z.AtVec(Bearing), z.AtVec(RangeRate)

	x := mat.NewVecDense(StateDim, nil)
	x.SetVec(PX, rho*math.Cos(phi))
	x.SetVec(PY, rho*math.Sin(phi))
	x.SetVec(V, math.Hypot(rhod*math.Cos(phi), rhod*math.Sin(phi)))

	return x, nil
}

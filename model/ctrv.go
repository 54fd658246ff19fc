package model

import (
	"fmt"
	"math"

	fusion "github.com/milosgajdos/go-fusion"
	"github.com/milosgajdos/go-fusion/matrix"
	"gonum.org/v1/gonum/mat"
)

// CTRV state vector indices
const (
	// PX is position x
	PX = iota
	// PY is position y
	PY
	// V is speed
	V
	// Yaw is heading angle
	Yaw
	// YawRate is heading rate
	YawRate
)

const (
	// StateDim is CTRV state dimension
	StateDim = 5
	// NoiseDim is CTRV process noise dimension
	NoiseDim = 2
	// MinYawRate is the heading rate below which motion is treated as straight
	MinYawRate = 0.001
)

// CTRV is Constant Turn Rate and Velocity motion model.
// Its process noise is longitudinal and yaw acceleration.
type CTRV struct {
	// stdA is longitudinal acceleration noise std dev [m/s^2]
	stdA float64
	// stdYawdd is yaw acceleration noise std dev [rad/s^2]
	stdYawdd float64
	// q is process noise covariance
	q *mat.SymDense
}

// NewCTRV creates new CTRV model with the given process noise standard deviations.
// It returns error if either std dev is negative.
func NewCTRV(stdA, stdYawdd float64) (*CTRV, error) {
	if stdA < 0 || stdYawdd < 0 {
		return nil, fmt.Errorf("%w: negative process noise: %v, %v", fusion.ErrInvalidConfig, stdA, stdYawdd)
	}

	return &CTRV{
		stdA:     stdA,
		stdYawdd: stdYawdd,
		q:        matrix.Diag(stdA*stdA, stdYawdd*stdYawdd),
	}, nil
}

// Propagate propagates state x by dt seconds.
// q stores longitudinal and yaw acceleration noise samples; nil q means no noise.
// It returns error if x or q have invalid dimensions or if dt is negative.
func (c *CTRV) Propagate(x, q mat.Vector, dt float64) (mat.Vector, error) {
	if x.Len() != StateDim {
		return nil, fmt.Errorf("invalid state vector length: %d", x.Len())
	}

	if q != nil && q.Len() != NoiseDim {
		return nil, fmt.Errorf("invalid noise vector length: %d", q.Len())
	}

	if dt < 0 {
		return nil, fmt.Errorf("%w: dt=%v", fusion.ErrNonMonotonicTime, dt)
	}

	px, py := x.AtVec(PX), x.AtVec(PY)
	v, yaw, yawd := x.AtVec(V), x.AtVec(Yaw), x.AtVec(YawRate)

	var nuA, nuYawdd float64
	if q != nil {
		nuA, nuYawdd = q.AtVec(0), q.AtVec(1)
	}

	if math.Abs(yawd) > MinYawRate {
		px += v / yawd * (math.Sin(yaw+yawd*dt) - math.Sin(yaw))
		py += v / yawd * (math.Cos(yaw) - math.Cos(yaw+yawd*dt))
	} else {
		px += v * dt * math.Cos(yaw)
		py += v * dt * math.Sin(yaw)
	}

	dt2 := 0.5 * dt * dt

	out := mat.NewVecDense(StateDim, nil)
	out.SetVec(PX, px+dt2*nuA*math.Cos(yaw))
	out.SetVec(PY, py+dt2*nuA*math.Sin(yaw))
	out.SetVec(V, v+nuA*dt)
	out.SetVec(Yaw, yaw+yawd*dt+dt2*nuYawdd)
	out.SetVec(YawRate, yawd+nuYawdd*dt)

	return out, nil
}

// Dims returns state and process noise dimensions.
func (c *CTRV) Dims() (nx, nq int) {
	return StateDim, NoiseDim
}

// NoiseCov returns process noise covariance.
func (c *CTRV) NoiseCov() mat.Symmetric {
	cov := mat.NewSymDense(NoiseDim, nil)
	cov.CopySym(c.q)

	return cov
}

// Residual stores a-b in dst and wraps the heading difference into (-Pi, Pi].
func (c *CTRV) Residual(dst *mat.VecDense, a, b mat.Vector) {
	dst.SubVec(a, b)
	dst.SetVec(Yaw, NormalizeAngle(dst.AtVec(Yaw)))
}

// String implements the Stringer interface.
func (c *CTRV) String() string {
	return fmt.Sprintf("CTRV{StdA=%v StdYawdd=%v}", c.stdA, c.stdYawdd)
}

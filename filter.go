package fusion

import "gonum.org/v1/gonum/mat"

// Filter is a recursive Bayesian filter.
type Filter interface {
	// Run propagates est forward by dt seconds and corrects it
	// using measurement z observed through obs.
	Run(est Estimate, dt float64, z mat.Vector, obs Observer) (Correction, error)
}

// Propagator propagates internal state of the system to the next step
type Propagator interface {
	// Propagate propagates state x by dt seconds given process noise sample q.
	// If q is nil the propagation is noiseless.
	Propagate(x, q mat.Vector, dt float64) (mat.Vector, error)
	// Dims returns state and process noise dimensions
	Dims() (nx, nq int)
	// NoiseCov returns process noise covariance
	NoiseCov() mat.Symmetric
	// Residual stores a-b in dst with angular components normalized
	Residual(dst *mat.VecDense, a, b mat.Vector)
}

// Observer observes external state (output) of the system
type Observer interface {
	// Observe maps state x into measurement space
	Observe(x mat.Vector) (mat.Vector, error)
	// Dim returns measurement dimension
	Dim() int
	// Cov returns measurement noise covariance
	Cov() mat.Symmetric
	// Residual stores a-b in dst with angular components normalized
	Residual(dst *mat.VecDense, a, b mat.Vector)
}

// SensorModel is an Observer which can also seed the filter state
// from a single raw measurement.
type SensorModel interface {
	Observer
	// Init returns filter state recovered from measurement z
	Init(z mat.Vector) (mat.Vector, error)
}

// InitCond is initial state condition of the filter
type InitCond interface {
	// State returns initial filter state
	State() mat.Vector
	// Cov returns initial state covariance
	Cov() mat.Symmetric
}

// Estimate is dynamical system filter estimate
type Estimate interface {
	// Val returns estimate value
	Val() mat.Vector
	// Cov returns estimate covariance
	Cov() mat.Symmetric
}

// Correction is an Estimate produced by a measurement update
type Correction interface {
	Estimate
	// Innovation returns the normalized measurement residual
	Innovation() mat.Vector
	// InnovationCov returns innovation covariance
	InnovationCov() mat.Symmetric
	// NIS returns normalized innovation squared
	NIS() float64
}

// Noise is dynamical system noise
type Noise interface {
	// Mean returns noise mean
	Mean() []float64
	// Cov returns covariance matrix of the noise
	Cov() mat.Symmetric
	// Sample returns a sample of the noise
	Sample() mat.Vector
	// Reset resets the noise
	Reset() error
}

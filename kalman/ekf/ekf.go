package ekf

import (
	"fmt"
	"math"

	fusion "github.com/milosgajdos/go-fusion"
	"github.com/milosgajdos/go-fusion/estimate"
	"github.com/milosgajdos/go-fusion/kalman"
	"github.com/milosgajdos/go-fusion/matrix"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
)

// JacFunc evaluates a vector valued function at x and stores the result in y
type JacFunc func(y, x []float64)

// EKF is Extended Kalman Filter
type EKF struct {
	// p propagates the state
	p fusion.Propagator
	// nx is state dimension
	nx int
	// nq is process noise dimension
	nq int
	// settings are Jacobian finite difference settings
	settings *fd.JacobianSettings
}

// New creates new EKF and returns it.
// It returns error if the propagator has invalid dimensions.
func New(p fusion.Propagator) (*EKF, error) {
	nx, nq := p.Dims()
	if nx <= 0 || nq < 0 {
		return nil, fmt.Errorf("%w: invalid propagator dimensions: [%d x %d]", fusion.ErrInvalidConfig, nx, nq)
	}

	if q := p.NoiseCov(); q.SymmetricDim() != nq {
		return nil, fmt.Errorf("%w: invalid noise covariance dimension: %d", fusion.ErrInvalidConfig, q.SymmetricDim())
	}

	return &EKF{
		p:  p,
		nx: nx,
		nq: nq,
		settings: &fd.JacobianSettings{
			Formula:    fd.Central,
			Concurrent: true,
		},
	}, nil
}

// Predict propagates state x with covariance p by dt seconds and returns its estimate.
// Process noise enters the covariance through the noise Jacobian.
// It returns error if the state fails to propagate.
func (k *EKF) Predict(x mat.Vector, p mat.Symmetric, dt float64) (*estimate.Base, error) {
	if x.Len() != k.nx || p.SymmetricDim() != k.nx {
		return nil, fmt.Errorf("invalid dimensions. State: %d, Cov: %d x %d", x.Len(), p.SymmetricDim(), p.SymmetricDim())
	}

	// propagate input state to the next step
	xNext, err := k.p.Propagate(x, nil, dt)
	if err != nil {
		return nil, fmt.Errorf("system state propagation failed: %w", err)
	}

	// propagation Jacobian
	f := mat.NewDense(k.nx, k.nx, nil)
	fd.Jacobian(f, k.stateJacFn(dt), mat.Col(nil, 0, x), k.settings)

	cov := &mat.Dense{}
	cov.Mul(f, p)
	cov.Mul(cov, f.T())

	if k.nq > 0 {
		// process noise Jacobian
		g := mat.NewDense(k.nx, k.nq, nil)
		fd.Jacobian(g, k.noiseJacFn(x, dt), make([]float64, k.nq), k.settings)

		gq := &mat.Dense{}
		gq.Mul(g, k.p.NoiseCov())
		q := &mat.Dense{}
		q.Mul(gq, g.T())

		cov.Add(cov, q)
	}

	if !matrix.IsFinite(cov) {
		return nil, fmt.Errorf("non-finite covariance prediction")
	}

	return estimate.NewBaseWithCov(xNext, matrix.Symmetrize(cov))
}

// Update corrects the predicted estimate pred using measurement z observed through obs.
// Covariance is corrected using Joseph form.
// It returns error if the measurement can't be observed or if the innovation
// covariance can't be inverted.
func (k *EKF) Update(pred fusion.Estimate, z mat.Vector, obs fusion.Observer) (*estimate.Update, error) {
	nz := obs.Dim()
	if z.Len() != nz {
		return nil, fmt.Errorf("%w: measurement length %d, expected %d", fusion.ErrInvalidMeasurement, z.Len(), nz)
	}

	x := pred.Val()
	p := pred.Cov()

	// observe system output
	y, err := obs.Observe(x)
	if err != nil {
		return nil, fmt.Errorf("failed to observe system output: %w", err)
	}

	// observation Jacobian
	h := mat.NewDense(nz, k.nx, nil)
	fd.Jacobian(h, observeJacFn(obs, k.nx), mat.Col(nil, 0, x), k.settings)
	if !matrix.IsFinite(h) {
		return nil, fmt.Errorf("non-finite observation Jacobian")
	}

	// P*H'
	pxy := &mat.Dense{}
	pxy.Mul(p, h.T())

	// H*P*H' + R
	pyy := &mat.Dense{}
	pyy.Mul(h, pxy)
	pyy.Add(pyy, obs.Cov())
	s := matrix.Symmetrize(pyy)

	// calculate Kalman gain
	gain, sInv, err := kalman.Gain(pxy, s)
	if err != nil {
		return nil, err
	}

	// innovation vector
	inn := &mat.VecDense{}
	obs.Residual(inn, z, y)

	// update state x
	xCorr := &mat.VecDense{}
	xCorr.MulVec(gain, inn)
	xCorr.AddVec(x, xCorr)

	// Joseph form update
	eye := mat.NewDiagDense(k.nx, nil)
	for i := 0; i < k.nx; i++ {
		eye.SetDiag(i, 1.0)
	}
	a := &mat.Dense{}
	// K*H
	a.Mul(gain, h)
	// eye - K*H
	a.Sub(eye, a)

	// K*R*K'
	kr := &mat.Dense{}
	kr.Mul(gain, obs.Cov())
	pkrk := &mat.Dense{}
	pkrk.Mul(kr, gain.T())

	ap := &mat.Dense{}
	ap.Mul(a, p)
	apa := &mat.Dense{}
	apa.Mul(ap, a.T())

	pCorr := &mat.Dense{}
	pCorr.Add(apa, pkrk)

	nis := kalman.NIS(inn, sInv)

	return estimate.NewUpdate(xCorr, matrix.Symmetrize(pCorr), inn, s, nis)
}

// Run runs one step of EKF: it propagates est by dt seconds and corrects it
// using measurement z observed through obs.
// It returns error if it either fails to propagate or correct the estimate.
func (k *EKF) Run(est fusion.Estimate, dt float64, z mat.Vector, obs fusion.Observer) (fusion.Correction, error) {
	pred, err := k.Predict(est.Val(), est.Cov(), dt)
	if err != nil {
		return nil, err
	}

	up, err := k.Update(pred, z, obs)
	if err != nil {
		return nil, err
	}

	return up, nil
}

// stateJacFn returns noiseless propagation function
func (k *EKF) stateJacFn(dt float64) JacFunc {
	return func(y, x []float64) {
		xNext, err := k.p.Propagate(mat.NewVecDense(len(x), x), nil, dt)
		if err != nil {
			fillNaN(y)
			return
		}

		for i := range y {
			y[i] = xNext.AtVec(i)
		}
	}
}

// noiseJacFn returns propagation function of x with respect to process noise
func (k *EKF) noiseJacFn(x mat.Vector, dt float64) JacFunc {
	return func(y, q []float64) {
		xNext, err := k.p.Propagate(x, mat.NewVecDense(len(q), q), dt)
		if err != nil {
			fillNaN(y)
			return
		}

		for i := range y {
			y[i] = xNext.AtVec(i)
		}
	}
}

// observeJacFn returns observation function of obs
func observeJacFn(obs fusion.Observer, nx int) JacFunc {
	return func(y, x []float64) {
		z, err := obs.Observe(mat.NewVecDense(nx, x))
		if err != nil {
			fillNaN(y)
			return
		}

		for i := range y {
			y[i] = z.AtVec(i)
		}
	}
}

func fillNaN(y []float64) {
	for i := range y {
		y[i] = math.NaN()
	}
}

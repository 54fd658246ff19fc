package ukf

import (
	"fmt"
	"math"

	fusion "github.com/milosgajdos/go-fusion"
	"github.com/milosgajdos/go-fusion/estimate"
	"github.com/milosgajdos/go-fusion/kalman"
	"github.com/milosgajdos/go-fusion/matrix"
	"gonum.org/v1/gonum/mat"
)

// Config contains UKF [unitless] configuration parameters
type Config struct {
	// Lambda is sigma point spreading parameter
	Lambda float64
}

// DefaultLambda returns spreading parameter computed from the state dimension nx.
func DefaultLambda(nx int) float64 {
	return 3 - float64(nx)
}

// AugmentedLambda returns spreading parameter computed from the augmented state dimension naug.
func AugmentedLambda(naug int) float64 {
	return 3 - float64(naug)
}

// SigmaPoints stores augmented sigma points
type SigmaPoints struct {
	// X stores sigma point vectors in columns
	X *mat.Dense
	// Cov is the augmented covariance
	Cov *mat.SymDense
	// Sqrt is the scaled square root of the augmented covariance
	Sqrt *mat.Dense
}

// Prediction is UKF state prediction.
// It keeps the propagated sigma points which are needed by Update.
type Prediction struct {
	// x stores predicted sigma points in columns
	x *mat.Dense
	// mean is predicted state
	mean *mat.VecDense
	// cov is predicted state covariance
	cov *mat.SymDense
}

// Val returns predicted state
func (p *Prediction) Val() mat.Vector {
	v := &mat.VecDense{}
	v.CloneFromVec(p.mean)

	return v
}

// Cov returns predicted covariance
func (p *Prediction) Cov() mat.Symmetric {
	cov := mat.NewSymDense(p.cov.SymmetricDim(), nil)
	cov.CopySym(p.cov)

	return cov
}

// SigmaPoints returns predicted sigma points stored in columns
func (p *Prediction) SigmaPoints() mat.Matrix {
	return mat.DenseCopyOf(p.x)
}

// UKF is Unscented (aka Sigma Point) Kalman Filter
type UKF struct {
	// p propagates the state
	p fusion.Propagator
	// nx is state dimension
	nx int
	// nq is process noise dimension
	nq int
	// naug is augmented state dimension
	naug int
	// lambda is sigma point spreading parameter
	lambda float64
	// gamma is the square root sigma point covariance scaling factor
	gamma float64
	// w stores sigma point weights
	w []float64
}

// New creates new UKF and returns it.
// It accepts the following arguments:
// - p:  state propagator
// - c:  filter configuration; if nil, DefaultLambda is used
// It returns error if the propagator has invalid dimensions or if lambda is out of range.
func New(p fusion.Propagator, c *Config) (*UKF, error) {
	nx, nq := p.Dims()
	if nx <= 0 || nq < 0 {
		return nil, fmt.Errorf("%w: invalid propagator dimensions: [%d x %d]", fusion.ErrInvalidConfig, nx, nq)
	}

	if q := p.NoiseCov(); q.SymmetricDim() != nq {
		return nil, fmt.Errorf("%w: invalid noise covariance dimension: %d", fusion.ErrInvalidConfig, q.SymmetricDim())
	}

	naug := nx + nq

	lambda := DefaultLambda(nx)
	if c != nil {
		lambda = c.Lambda
	}

	if lambda+float64(naug) <= 0 {
		return nil, fmt.Errorf("%w: lambda %v too small for augmented dimension %d", fusion.ErrInvalidConfig, lambda, naug)
	}

	// weight of the mean sigma point and the remaining sigma points
	w := make([]float64, 2*naug+1)
	w[0] = lambda / (lambda + float64(naug))
	for i := 1; i < len(w); i++ {
		w[i] = 0.5 / (lambda + float64(naug))
	}

	return &UKF{
		p:      p,
		nx:     nx,
		nq:     nq,
		naug:   naug,
		lambda: lambda,
		gamma:  math.Sqrt(lambda + float64(naug)),
		w:      w,
	}, nil
}

// Lambda returns sigma point spreading parameter
func (k *UKF) Lambda() float64 {
	return k.lambda
}

// Weights returns sigma point weights
func (k *UKF) Weights() []float64 {
	w := make([]float64, len(k.w))
	copy(w, k.w)

	return w
}

// SigmaPoints generates augmented sigma points around state x with covariance p.
// Sigma point vectors are stored in columns: first column is the augmented mean,
// the following naug columns are the mean plus scaled covariance square root columns
// and the last naug columns are the mean minus them.
// It returns fusion.ErrNotPositiveDefinite if p is not positive definite.
func (k *UKF) SigmaPoints(x mat.Vector, p mat.Symmetric) (*SigmaPoints, error) {
	if x.Len() != k.nx || p.SymmetricDim() != k.nx {
		return nil, fmt.Errorf("invalid dimensions. State: %d, Cov: %d x %d", x.Len(), p.SymmetricDim(), p.SymmetricDim())
	}

	l, ok := matrix.Sqrt(p)
	if !ok {
		return nil, fmt.Errorf("%w: state covariance", fusion.ErrNotPositiveDefinite)
	}

	q := k.p.NoiseCov()
	lq, err := noiseSqrt(q)
	if err != nil {
		return nil, err
	}

	sqrt := mat.NewDense(k.naug, k.naug, nil)
	sqrt.Slice(0, k.nx, 0, k.nx).(*mat.Dense).Copy(l)
	if k.nq > 0 {
		sqrt.Slice(k.nx, k.naug, k.nx, k.naug).(*mat.Dense).Copy(lq)
	}
	sqrt.Scale(k.gamma, sqrt)

	// augmented mean: process noise is zero mean
	mean := make([]float64, k.naug)
	for i := 0; i < k.nx; i++ {
		mean[i] = x.AtVec(i)
	}

	cols := 2*k.naug + 1
	sp := mat.NewDense(k.naug, cols, nil)
	for c := 0; c < cols; c++ {
		sp.SetCol(c, mean)
	}

	// positive sigma points
	sx := sp.Slice(0, k.naug, 1, 1+k.naug).(*mat.Dense)
	sx.Add(sx, sqrt)
	// negative sigma points
	sx = sp.Slice(0, k.naug, 1+k.naug, cols).(*mat.Dense)
	sx.Sub(sx, sqrt)

	return &SigmaPoints{
		X:    sp,
		Cov:  matrix.BlockDiag(p, q),
		Sqrt: sqrt,
	}, nil
}

// noiseSqrt returns square root of process noise covariance q.
// Diagonal q is factorized elementwise so zero noise is accepted.
func noiseSqrt(q mat.Symmetric) (mat.Matrix, error) {
	n := q.SymmetricDim()
	if n == 0 {
		return nil, nil
	}

	diag := true
	for i := 0; i < n && diag; i++ {
		for j := i + 1; j < n; j++ {
			if q.At(i, j) != 0 {
				diag = false
				break
			}
		}
	}

	if !diag {
		l, ok := matrix.Sqrt(q)
		if !ok {
			return nil, fmt.Errorf("%w: process noise covariance", fusion.ErrNotPositiveDefinite)
		}
		return l, nil
	}

	vals := make([]float64, n)
	for i := range vals {
		v := q.At(i, i)
		if v < 0 {
			return nil, fmt.Errorf("%w: process noise covariance", fusion.ErrNotPositiveDefinite)
		}
		vals[i] = math.Sqrt(v)
	}

	return mat.NewDiagDense(n, vals), nil
}

// Predict propagates state x with covariance p by dt seconds and returns the prediction.
// It returns error if it either fails to generate or propagate the sigma points.
func (k *UKF) Predict(x mat.Vector, p mat.Symmetric, dt float64) (*Prediction, error) {
	if dt < 0 {
		return nil, fmt.Errorf("%w: dt=%v", fusion.ErrNonMonotonicTime, dt)
	}

	sp, err := k.SigmaPoints(x, p)
	if err != nil {
		return nil, fmt.Errorf("failed to generate sigma points: %w", err)
	}

	_, cols := sp.X.Dims()
	xs := mat.NewDense(k.nx, cols, nil)

	for c := 0; c < cols; c++ {
		aug := sp.X.ColView(c).(*mat.VecDense)

		var q mat.Vector
		if k.nq > 0 {
			q = aug.SliceVec(k.nx, k.naug)
		}

		next, err := k.p.Propagate(aug.SliceVec(0, k.nx), q, dt)
		if err != nil {
			return nil, fmt.Errorf("failed to propagate sigma point %d: %w", c, err)
		}
		xs.SetCol(c, mat.Col(nil, 0, next))
	}

	if !matrix.IsFinite(xs) {
		return nil, fmt.Errorf("non-finite sigma point prediction")
	}

	mean := matrix.WeightedMean(xs, k.w)

	dx := k.residuals(xs, mean, k.p.Residual)
	cov := matrix.WeightedCov(dx, k.w)

	return &Prediction{
		x:    xs,
		mean: mean,
		cov:  cov,
	}, nil
}

// Update corrects prediction pred using measurement z observed through obs.
// It returns error if any sigma point can't be observed or if the innovation
// covariance can't be inverted. No correction is applied on error.
func (k *UKF) Update(pred *Prediction, z mat.Vector, obs fusion.Observer) (*estimate.Update, error) {
	nz := obs.Dim()
	if z.Len() != nz {
		return nil, fmt.Errorf("%w: measurement length %d, expected %d", fusion.ErrInvalidMeasurement, z.Len(), nz)
	}

	_, cols := pred.x.Dims()
	zs := mat.NewDense(nz, cols, nil)

	for c := 0; c < cols; c++ {
		out, err := obs.Observe(pred.x.ColView(c))
		if err != nil {
			return nil, fmt.Errorf("failed to observe sigma point %d: %w", c, err)
		}
		zs.SetCol(c, mat.Col(nil, 0, out))
	}

	zMean := matrix.WeightedMean(zs, k.w)

	dz := k.residuals(zs, zMean, obs.Residual)
	dx := k.residuals(pred.x, pred.mean, k.p.Residual)

	// innovation covariance
	s := matrix.WeightedCov(dz, k.w)
	s.AddSym(s, obs.Cov())

	// state-measurement cross covariance
	tc := matrix.WeightedCrossCov(dx, dz, k.w)

	// calculate Kalman gain
	gain, sInv, err := kalman.Gain(tc, s)
	if err != nil {
		return nil, err
	}

	// innovation vector
	inn := &mat.VecDense{}
	obs.Residual(inn, z, zMean)

	// correct state
	x := &mat.VecDense{}
	x.MulVec(gain, inn)
	x.AddVec(pred.mean, x)

	// correct covariance
	ks := &mat.Dense{}
	ks.Mul(gain, s)
	ksk := &mat.Dense{}
	ksk.Mul(ks, gain.T())
	pCorr := &mat.Dense{}
	pCorr.Sub(pred.cov, ksk)

	cov := matrix.Symmetrize(pCorr)

	nis := kalman.NIS(inn, sInv)

	if !matrix.IsFinite(x) || !matrix.IsFinite(cov) {
		return nil, fmt.Errorf("non-finite state correction")
	}

	return estimate.NewUpdate(x, cov, inn, s, nis)
}

// Run runs one step of UKF: it propagates est by dt seconds and corrects it
// using measurement z observed through obs.
// It returns error if it either fails to predict or correct the estimate.
func (k *UKF) Run(est fusion.Estimate, dt float64, z mat.Vector, obs fusion.Observer) (fusion.Correction, error) {
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

// residuals returns residuals of the columns of m from mean.
func (k *UKF) residuals(m *mat.Dense, mean mat.Vector, residual func(dst *mat.VecDense, a, b mat.Vector)) *mat.Dense {
	rows, cols := m.Dims()
	d := mat.NewDense(rows, cols, nil)

	r := &mat.VecDense{}
	for c := 0; c < cols; c++ {
		r.Reset()
		residual(r, m.ColView(c), mean)
		d.SetCol(c, mat.Col(nil, 0, r))
	}

	return d
}

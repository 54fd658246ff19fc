package ukf

import (
	"errors"
	"math"
	"os"
	"testing"

	fusion "github.com/milosgajdos/go-fusion"
	"github.com/milosgajdos/go-fusion/estimate"
	"github.com/milosgajdos/go-fusion/matrix"
	"github.com/milosgajdos/go-fusion/model"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

// mockCV is a noiseless constant velocity model with state [p, v]
type mockCV struct{}

func (m *mockCV) Propagate(x, q mat.Vector, dt float64) (mat.Vector, error) {
	return mat.NewVecDense(2, []float64{x.AtVec(0) + dt*x.AtVec(1), x.AtVec(1)}), nil
}

func (m *mockCV) Dims() (int, int)        { return 2, 0 }
func (m *mockCV) NoiseCov() mat.Symmetric { return &mat.SymDense{} }

func (m *mockCV) Residual(dst *mat.VecDense, a, b mat.Vector) {
	dst.SubVec(a, b)
}

type invalidModel struct{}

func (m *invalidModel) Propagate(x, q mat.Vector, dt float64) (mat.Vector, error) {
	return new(mat.VecDense), nil
}

func (m *invalidModel) Dims() (int, int)        { return -10, 2 }
func (m *invalidModel) NoiseCov() mat.Symmetric { return mat.NewSymDense(2, nil) }

func (m *invalidModel) Residual(dst *mat.VecDense, a, b mat.Vector) {}

// mockPosObs observes the first state component with unit noise
type mockPosObs struct{}

func (m *mockPosObs) Observe(x mat.Vector) (mat.Vector, error) {
	return mat.NewVecDense(1, []float64{x.AtVec(0)}), nil
}

func (m *mockPosObs) Dim() int           { return 1 }
func (m *mockPosObs) Cov() mat.Symmetric { return mat.NewSymDense(1, []float64{1.0}) }

func (m *mockPosObs) Residual(dst *mat.VecDense, a, b mat.Vector) {
	dst.SubVec(a, b)
}

// constObs observes zero regardless of the state and has no noise
type constObs struct{}

func (m *constObs) Observe(x mat.Vector) (mat.Vector, error) {
	return mat.NewVecDense(1, nil), nil
}

func (m *constObs) Dim() int           { return 1 }
func (m *constObs) Cov() mat.Symmetric { return mat.NewSymDense(1, nil) }

func (m *constObs) Residual(dst *mat.VecDense, a, b mat.Vector) {
	dst.SubVec(a, b)
}

var (
	ctrv *model.CTRV
	pos  *model.Position
	rb   *model.RangeBearing
	x0   *mat.VecDense
	p0   *mat.SymDense
)

func setup() {
	ctrv, _ = model.NewCTRV(2.5, 0.9)
	pos, _ = model.NewPosition(0.15, 0.15)
	rb, _ = model.NewRangeBearing(0.3, 0.03, 0.3)

	x0 = mat.NewVecDense(model.StateDim, []float64{5.7, 0.6, 2.2, 0.5, 0.35})
	p0 = matrix.Diag(0.0043, 0.0077, 0.0011, 0.0071, 0.0060)
}

func TestMain(m *testing.M) {
	// set up tests
	setup()
	// run the tests
	retCode := m.Run()
	// call with result of m.Run()
	os.Exit(retCode)
}

func TestNew(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ctrv, nil)
	assert.NotNil(f)
	assert.NoError(err)
	assert.Equal(DefaultLambda(model.StateDim), f.Lambda())

	f, err = New(ctrv, &Config{Lambda: AugmentedLambda(7)})
	assert.NotNil(f)
	assert.NoError(err)
	assert.Equal(-4.0, f.Lambda())

	// invalid model: incorrect dimensions
	f, err = New(&invalidModel{}, nil)
	assert.Nil(f)
	assert.True(errors.Is(err, fusion.ErrInvalidConfig))

	// lambda + naug must be positive
	f, err = New(ctrv, &Config{Lambda: -7.0})
	assert.Nil(f)
	assert.True(errors.Is(err, fusion.ErrInvalidConfig))
}

func TestWeights(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ctrv, nil)
	assert.NoError(err)

	w := f.Weights()
	assert.Len(w, 15)
	assert.InDelta(-0.4, w[0], 1e-15)

	sum := 0.0
	for i, wi := range w {
		if i > 0 {
			assert.InDelta(0.1, wi, 1e-15)
		}
		sum += wi
	}
	assert.InDelta(1.0, sum, 1e-12)

	// returned weights are a copy
	w[0] = 100
	assert.InDelta(-0.4, f.Weights()[0], 1e-15)

	f, err = New(ctrv, &Config{Lambda: 1.5})
	assert.NoError(err)

	sum = 0.0
	for _, wi := range f.Weights() {
		sum += wi
	}
	assert.InDelta(1.0, sum, 1e-12)
}

func TestSigmaPoints(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ctrv, nil)
	assert.NoError(err)

	x := mat.NewVecDense(model.StateDim, []float64{1, 2, 3, 0.5, 0.1})
	p := matrix.Diag(1, 4, 9, 0.25, 0.01)

	sp, err := f.SigmaPoints(x, p)
	assert.NoError(err)

	rows, cols := sp.X.Dims()
	assert.Equal(7, rows)
	assert.Equal(15, cols)

	// scaled square root reproduces the augmented covariance
	assert.Equal(7, sp.Cov.SymmetricDim())
	assert.InDelta(6.25, sp.Cov.At(5, 5), 1e-12)
	lt := &mat.Dense{}
	lt.Mul(sp.Sqrt, sp.Sqrt.T())
	lt.Scale(1/5.0, lt)
	assert.True(mat.EqualApprox(lt, sp.Cov, 1e-9))

	// first column is the augmented mean
	for i := 0; i < model.StateDim; i++ {
		assert.Equal(x.AtVec(i), sp.X.At(i, 0))
	}
	assert.Equal(0.0, sp.X.At(5, 0))
	assert.Equal(0.0, sp.X.At(6, 0))

	gamma := math.Sqrt(5)
	assert.InDelta(1+gamma*1, sp.X.At(0, 1), 1e-12)
	assert.InDelta(1-gamma*1, sp.X.At(0, 8), 1e-12)
	assert.InDelta(2+gamma*2, sp.X.At(1, 2), 1e-12)
	assert.InDelta(2-gamma*2, sp.X.At(1, 9), 1e-12)
	// process noise columns
	assert.InDelta(gamma*2.5, sp.X.At(5, 6), 1e-12)
	assert.InDelta(-gamma*2.5, sp.X.At(5, 13), 1e-12)
	assert.InDelta(gamma*0.9, sp.X.At(6, 7), 1e-12)
	assert.InDelta(-gamma*0.9, sp.X.At(6, 14), 1e-12)

	// sigma points are symmetric around the mean
	for c := 1; c <= 7; c++ {
		for r := 0; r < rows; r++ {
			assert.InDelta(2*sp.X.At(r, 0), sp.X.At(r, c)+sp.X.At(r, c+7), 1e-12)
		}
	}
}

func TestSigmaPointsNotPositiveDefinite(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ctrv, nil)
	assert.NoError(err)

	x := mat.NewVecDense(model.StateDim, nil)

	sp, err := f.SigmaPoints(x, matrix.Diag(1, -1, 1, 1, 1))
	assert.Nil(sp)
	assert.True(errors.Is(err, fusion.ErrNotPositiveDefinite))

	pred, err := f.Predict(x, matrix.Diag(1, 1, 0, 1, 1), 0.1)
	assert.Nil(pred)
	assert.True(errors.Is(err, fusion.ErrNotPositiveDefinite))

	sp, err = f.SigmaPoints(mat.NewVecDense(3, nil), p0)
	assert.Nil(sp)
	assert.Error(err)
}

func TestPredictLinear(t *testing.T) {
	assert := assert.New(t)

	f, err := New(&mockCV{}, nil)
	assert.NoError(err)

	x := mat.NewVecDense(2, []float64{1, 2})
	p := matrix.Diag(1, 1)

	pred, err := f.Predict(x, p, 1.0)
	assert.NoError(err)

	assert.InDelta(3.0, pred.Val().AtVec(0), 1e-12)
	assert.InDelta(2.0, pred.Val().AtVec(1), 1e-12)

	cov := pred.Cov()
	assert.InDelta(2.0, cov.At(0, 0), 1e-12)
	assert.InDelta(1.0, cov.At(0, 1), 1e-12)
	assert.InDelta(1.0, cov.At(1, 1), 1e-12)

	_, cols := pred.SigmaPoints().Dims()
	assert.Equal(5, cols)
}

func TestUpdateLinear(t *testing.T) {
	assert := assert.New(t)

	f, err := New(&mockCV{}, nil)
	assert.NoError(err)

	pred, err := f.Predict(mat.NewVecDense(2, []float64{1, 2}), matrix.Diag(1, 1), 1.0)
	assert.NoError(err)

	up, err := f.Update(pred, mat.NewVecDense(1, []float64{4}), &mockPosObs{})
	assert.NoError(err)

	assert.InDelta(3+2.0/3.0, up.Val().AtVec(0), 1e-12)
	assert.InDelta(2+1.0/3.0, up.Val().AtVec(1), 1e-12)

	cov := up.Cov()
	assert.InDelta(2.0/3.0, cov.At(0, 0), 1e-12)
	assert.InDelta(1.0/3.0, cov.At(0, 1), 1e-12)
	assert.InDelta(2.0/3.0, cov.At(1, 1), 1e-12)

	assert.InDelta(1.0, up.Innovation().AtVec(0), 1e-12)
	assert.InDelta(3.0, up.InnovationCov().At(0, 0), 1e-12)
	assert.InDelta(1.0/3.0, up.NIS(), 1e-12)

	// prediction is left untouched
	assert.InDelta(3.0, pred.Val().AtVec(0), 1e-12)
	assert.InDelta(2.0, pred.Cov().At(0, 0), 1e-12)
}

func TestPredictZeroDuration(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ctrv, nil)
	assert.NoError(err)

	pred, err := f.Predict(x0, p0, 0.0)
	assert.NoError(err)

	x := pred.Val()
	for i := 0; i < model.StateDim; i++ {
		assert.InDelta(x0.AtVec(i), x.AtVec(i), 1e-9)
	}

	p := pred.Cov()
	for i := 0; i < model.StateDim; i++ {
		for j := 0; j < model.StateDim; j++ {
			assert.InDelta(p0.At(i, j), p.At(i, j), 1e-9)
		}
	}

	pred, err = f.Predict(x0, p0, -0.1)
	assert.Nil(pred)
	assert.True(errors.Is(err, fusion.ErrNonMonotonicTime))
}

func TestPredictZeroProcessNoise(t *testing.T) {
	assert := assert.New(t)

	noiseless, err := model.NewCTRV(0, 0)
	assert.NoError(err)

	f, err := New(noiseless, nil)
	assert.NoError(err)

	pred, err := f.Predict(x0, p0, 0.1)
	assert.NoError(err)
	assert.True(matrix.IsFinite(pred.Cov()))

	var chol mat.Cholesky
	assert.True(chol.Factorize(pred.Cov()))
}

func TestPredictCTRV(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ctrv, nil)
	assert.NoError(err)

	pred, err := f.Predict(x0, p0, 0.1)
	assert.NoError(err)

	// predicted mean stays close to noiseless propagation of the mean
	exp, err := ctrv.Propagate(x0, nil, 0.1)
	assert.NoError(err)

	x := pred.Val()
	for i := 0; i < model.StateDim; i++ {
		assert.InDelta(exp.AtVec(i), x.AtVec(i), 0.05)
	}

	// process noise inflates the covariance
	p := pred.Cov()
	for i := 0; i < model.StateDim; i++ {
		assert.True(p.At(i, i) > p0.At(i, i))
		for j := 0; j < model.StateDim; j++ {
			assert.Equal(p.At(i, j), p.At(j, i))
		}
	}
}

func TestUpdateErrors(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ctrv, nil)
	assert.NoError(err)

	pred, err := f.Predict(x0, p0, 0.1)
	assert.NoError(err)

	// invalid measurement length
	up, err := f.Update(pred, mat.NewVecDense(3, nil), pos)
	assert.Nil(up)
	assert.True(errors.Is(err, fusion.ErrInvalidMeasurement))

	// singular innovation covariance
	up, err = f.Update(pred, mat.NewVecDense(1, []float64{1.0}), &constObs{})
	assert.Nil(up)
	assert.True(errors.Is(err, fusion.ErrSingularInnovation))

	// mean sigma point at the sensor origin
	origin := mat.NewVecDense(model.StateDim, nil)
	pred, err = f.Predict(origin, p0, 0.1)
	assert.NoError(err)

	up, err = f.Update(pred, mat.NewVecDense(3, []float64{1, 0, 0}), rb)
	assert.Nil(up)
	assert.True(errors.Is(err, fusion.ErrZeroRange))
}

func TestUpdateBearingWraparound(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ctrv, nil)
	assert.NoError(err)

	// object behind the sensor just above the negative x axis
	x := mat.NewVecDense(model.StateDim, []float64{-10, 0.01, 1, 0, 0})
	p := matrix.Diag(1e-4, 1e-6, 1e-4, 1e-4, 1e-4)

	pred, err := f.Predict(x, p, 0)
	assert.NoError(err)

	zPred, err := rb.Observe(pred.Val())
	assert.NoError(err)
	assert.True(zPred.AtVec(model.Bearing) > math.Pi-0.01)

	// measured bearing crossed the negative x axis
	z := mat.VecDenseCopyOf(zPred)
	z.SetVec(model.Bearing, zPred.AtVec(model.Bearing)+0.002-2*math.Pi)

	up, err := f.Update(pred, z, rb)
	assert.NoError(err)
	assert.InDelta(0.002, up.Innovation().AtVec(model.Bearing), 1e-4)
	assert.InDelta(0.01, up.Val().AtVec(model.PY), 0.05)
}

func TestRun(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ctrv, nil)
	assert.NoError(err)

	var _ fusion.Filter = f

	// initialized from position (0, 0) and observed at (1, 0) a second later
	est, err := estimate.NewBaseWithCov(mat.NewVecDense(model.StateDim, nil), matrix.Diag(1, 1, 1, 1, 1))
	assert.NoError(err)

	corr, err := f.Run(est, 1.0, mat.NewVecDense(2, []float64{1, 0}), pos)
	assert.NoError(err)

	x := corr.Val()
	assert.True(x.AtVec(model.PX) > 0 && x.AtVec(model.PX) < 1)
	assert.InDelta(0.0, x.AtVec(model.PY), 1e-6)
	assert.True(corr.NIS() >= 0)

	cov := corr.Cov()
	for i := 0; i < model.StateDim; i++ {
		assert.True(cov.At(i, i) > 0)
		for j := 0; j < model.StateDim; j++ {
			assert.InDelta(cov.At(i, j), cov.At(j, i), 1e-12)
		}
	}

	corr, err = f.Run(est, -1.0, mat.NewVecDense(2, []float64{1, 0}), pos)
	assert.Nil(corr)
	assert.True(errors.Is(err, fusion.ErrNonMonotonicTime))
}

func TestRunRangeBearing(t *testing.T) {
	assert := assert.New(t)

	f, err := New(ctrv, nil)
	assert.NoError(err)

	est, err := estimate.NewBaseWithCov(x0, p0)
	assert.NoError(err)

	truth, err := ctrv.Propagate(x0, nil, 0.05)
	assert.NoError(err)
	z, err := rb.Observe(truth)
	assert.NoError(err)

	corr, err := f.Run(est, 0.05, z, rb)
	assert.NoError(err)
	assert.True(corr.NIS() >= 0)
	assert.Equal(3, corr.Innovation().Len())
	assert.True(matrix.IsFinite(corr.Val()))

	// correction shrinks the position uncertainty
	pred, err := f.Predict(x0, p0, 0.05)
	assert.NoError(err)
	assert.True(corr.Cov().At(model.PX, model.PX) < pred.Cov().At(model.PX, model.PX))
}

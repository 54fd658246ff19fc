package sim

import (
	"fmt"
	"math"

	fusion "github.com/milosgajdos/go-fusion"
	"github.com/milosgajdos/go-fusion/model"
	"github.com/milosgajdos/go-fusion/noise"
	"gonum.org/v1/gonum/mat"
)

// Config is CTRV simulation configuration
type Config struct {
	// Steps is number of simulation steps
	Steps int `yaml:"steps"`
	// Dt is simulation step [s]
	Dt float64 `yaml:"dt"`
	// Init is initial ground truth state [px, py, v, yaw, yawd]
	Init []float64 `yaml:"init"`
	// StdA is ground truth longitudinal acceleration noise std dev [m/s^2]
	StdA float64 `yaml:"std_a"`
	// StdYawdd is ground truth yaw acceleration noise std dev [rad/s^2]
	StdYawdd float64 `yaml:"std_yawdd"`
	// StdPx is position sensor x noise std dev [m]
	StdPx float64 `yaml:"std_px"`
	// StdPy is position sensor y noise std dev [m]
	StdPy float64 `yaml:"std_py"`
	// StdR is range noise std dev [m]
	StdR float64 `yaml:"std_r"`
	// StdPhi is bearing noise std dev [rad]
	StdPhi float64 `yaml:"std_phi"`
	// StdRd is range rate noise std dev [m/s]
	StdRd float64 `yaml:"std_rd"`
	// Seed seeds all noise sources
	Seed uint64 `yaml:"seed"`
}

// DefaultConfig returns default simulation configuration:
// an object circling at constant speed and turn rate observed by both sensors.
func DefaultConfig() *Config {
	return &Config{
		Steps:    500,
		Dt:       0.05,
		Init:     []float64{0.6, 0.6, 5.2, 0, 0.2},
		StdA:     0.5,
		StdYawdd: 0.1,
		StdPx:    0.15,
		StdPy:    0.15,
		StdR:     0.3,
		StdPhi:   0.03,
		StdRd:    0.3,
		Seed:     1,
	}
}

// Sample is a single simulation step
type Sample struct {
	// Truth is ground truth state
	Truth *mat.VecDense
	// Measurement is noisy sensor measurement of Truth
	Measurement fusion.Measurement
}

// Generate simulates CTRV ground truth and returns noisy measurements of it.
// Measurements alternate between the position and the range/bearing sensor.
// It returns error if the configuration is invalid or if the simulation fails.
func Generate(c *Config) ([]Sample, error) {
	if c.Steps <= 0 || c.Dt <= 0 {
		return nil, fmt.Errorf("%w: invalid simulation steps: %d x %v", fusion.ErrInvalidConfig, c.Steps, c.Dt)
	}

	if len(c.Init) != model.StateDim {
		return nil, fmt.Errorf("%w: invalid initial state length: %d", fusion.ErrInvalidConfig, len(c.Init))
	}

	ctrv, err := model.NewCTRV(c.StdA, c.StdYawdd)
	if err != nil {
		return nil, err
	}

	pos, err := model.NewPosition(c.StdPx, c.StdPy)
	if err != nil {
		return nil, err
	}

	rb, err := model.NewRangeBearing(c.StdR, c.StdPhi, c.StdRd)
	if err != nil {
		return nil, err
	}

	q, err := newNoise(ctrv.NoiseCov(), c.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to create process noise: %w", err)
	}

	sensors := []struct {
		sensor fusion.Sensor
		obs    fusion.Observer
		noise  fusion.Noise
	}{
		{sensor: fusion.PositionSensor, obs: pos},
		{sensor: fusion.RangeBearingSensor, obs: rb},
	}

	for i := range sensors {
		sensors[i].noise, err = newNoise(sensors[i].obs.Cov(), c.Seed+uint64(i)+1)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s noise: %w", sensors[i].sensor, err)
		}
	}

	step := int64(math.Round(c.Dt * 1e6))

	var x mat.Vector = mat.NewVecDense(model.StateDim, append([]float64(nil), c.Init...))
	samples := make([]Sample, 0, c.Steps)

	for i := 0; i < c.Steps; i++ {
		s := sensors[i%len(sensors)]

		z, err := s.obs.Observe(x)
		if err != nil {
			return nil, fmt.Errorf("failed to observe step %d: %w", i, err)
		}

		meas := &mat.VecDense{}
		meas.AddVec(z, s.noise.Sample())
		if s.sensor == fusion.RangeBearingSensor {
			meas.SetVec(model.Bearing, model.NormalizeAngle(meas.AtVec(model.Bearing)))
		}

		samples = append(samples, Sample{
			Truth: mat.VecDenseCopyOf(x),
			Measurement: fusion.Measurement{
				Sensor:    s.sensor,
				Timestamp: int64(i) * step,
				Values:    mat.Col(nil, 0, meas),
			},
		})

		x, err = ctrv.Propagate(x, q.Sample(), c.Dt)
		if err != nil {
			return nil, fmt.Errorf("failed to propagate step %d: %w", i, err)
		}
	}

	return samples, nil
}

// newNoise returns zero mean Gaussian noise with covariance cov.
// Diagonal covariances are sampled per component so that zero variance
// components stay exactly zero.
func newNoise(cov mat.Symmetric, seed uint64) (fusion.Noise, error) {
	n := cov.SymmetricDim()

	vars := make([]float64, n)
	diag, zero := true, true
	for i := 0; i < n; i++ {
		vars[i] = cov.At(i, i)
		if vars[i] != 0 {
			zero = false
		}
		for j := i + 1; j < n; j++ {
			if cov.At(i, j) != 0 {
				diag = false
			}
		}
	}

	switch {
	case zero && diag:
		return noise.NewZero(n)
	case diag:
		return noise.NewDiagonal(vars, seed)
	}

	return noise.NewGaussianWithSeed(make([]float64, n), cov, seed)
}

// Cartesian converts CTRV state x into [px, py, vx, vy].
func Cartesian(x mat.Vector) *mat.VecDense {
	v, yaw := x.AtVec(model.V), x.AtVec(model.Yaw)

	return mat.NewVecDense(4, []float64{
		x.AtVec(model.PX),
		x.AtVec(model.PY),
		v * math.Cos(yaw),
		v * math.Sin(yaw),
	})
}

// Position returns Cartesian position of measurement m.
func Position(m fusion.Measurement) (x, y float64) {
	switch m.Sensor {
	case fusion.RangeBearingSensor:
		return m.Values[model.Range] * math.Cos(m.Values[model.Bearing]),
			m.Values[model.Range] * math.Sin(m.Values[model.Bearing])
	default:
		return m.Values[0], m.Values[1]
	}
}

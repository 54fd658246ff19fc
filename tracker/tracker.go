package tracker

import (
	"fmt"

	fusion "github.com/milosgajdos/go-fusion"
	"github.com/milosgajdos/go-fusion/estimate"
	"github.com/milosgajdos/go-fusion/kalman/ekf"
	"github.com/milosgajdos/go-fusion/kalman/ukf"
	"github.com/milosgajdos/go-fusion/matrix"
	"github.com/milosgajdos/go-fusion/model"
	"gonum.org/v1/gonum/mat"
)

// Tracker tracks a single object from a time ordered stream of
// position and range/bearing measurements.
// Tracker is not safe for concurrent use.
type Tracker struct {
	// c is tracker configuration
	c *Config
	// f is the recursive filter
	f fusion.Filter
	// sensors maps sensors to their measurement models
	sensors map[fusion.Sensor]fusion.SensorModel
	// p0 is initial state covariance
	p0 *mat.SymDense
	// est is the current estimate
	est fusion.Estimate
	// ts is the timestamp of the last processed measurement [us]
	ts int64
	// nis is NIS of the last correction
	nis float64
	// nisHist stores NIS of all corrections per sensor
	nisHist map[fusion.Sensor][]float64
}

// New creates new Tracker with configuration c and returns it.
// If c is nil, DefaultConfig is used. The tracker keeps its own copy of c.
// It returns error if the configuration is invalid.
func New(c *Config) (*Tracker, error) {
	if c == nil {
		c = DefaultConfig()
	}
	c = c.Copy()

	if err := c.Validate(); err != nil {
		return nil, err
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

	var f fusion.Filter
	switch c.Filter {
	case EKF:
		f, err = ekf.New(ctrv)
	default:
		var uc *ukf.Config
		if c.Lambda != nil {
			uc = &ukf.Config{Lambda: *c.Lambda}
		}
		f, err = ukf.New(ctrv, uc)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s filter: %w", c.Filter, err)
	}

	p0, err := matrix.Eye(model.StateDim, 1.0)
	if err != nil {
		return nil, err
	}
	if len(c.InitCov) != 0 {
		p0 = matrix.Diag(c.InitCov...)
	}

	return &Tracker{
		c: c,
		f: f,
		sensors: map[fusion.Sensor]fusion.SensorModel{
			fusion.PositionSensor:     pos,
			fusion.RangeBearingSensor: rb,
		},
		p0:      p0,
		nisHist: make(map[fusion.Sensor][]float64),
	}, nil
}

// Process processes measurement m and returns the updated estimate.
// The first measurement initializes the tracker. Measurements of disabled
// sensors are dropped after initialization and the current estimate is returned.
// It returns error if m is invalid, arrives out of order or if the filter fails to
// correct the estimate; the tracker state is left unchanged on error.
func (t *Tracker) Process(m fusion.Measurement) (fusion.Estimate, error) {
	if err := m.Validate(); err != nil {
		Logf("rejected measurement: %v", err)
		return nil, err
	}

	sm := t.sensors[m.Sensor]
	z := m.Vec()

	if t.est == nil {
		x, err := sm.Init(z)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize from %s measurement: %w", m.Sensor, err)
		}

		ic, err := model.NewInitCond(x, t.p0)
		if err != nil {
			return nil, err
		}

		est, err := estimate.NewBaseWithCov(ic.State(), ic.Cov())
		if err != nil {
			return nil, err
		}

		t.est = est
		t.ts = m.Timestamp
		Logf("tracker initialized from %s measurement at %d", m.Sensor, m.Timestamp)

		return t.Estimate(), nil
	}

	if m.Timestamp < t.ts {
		return nil, fmt.Errorf("%w: %s measurement at %d, last at %d", fusion.ErrNonMonotonicTime, m.Sensor, m.Timestamp, t.ts)
	}

	if !t.c.Enabled(m.Sensor) {
		Logf("dropped %s measurement at %d: sensor disabled", m.Sensor, m.Timestamp)
		return t.Estimate(), nil
	}

	dt := float64(m.Timestamp-t.ts) / 1e6

	corr, err := t.f.Run(t.est, dt, z, sm)
	if err != nil {
		Logf("rejected %s measurement at %d: %v", m.Sensor, m.Timestamp, err)
		return nil, fmt.Errorf("%s update failed: %w", m.Sensor, err)
	}

	t.est = corr
	t.ts = m.Timestamp
	t.nis = corr.NIS()
	t.nisHist[m.Sensor] = append(t.nisHist[m.Sensor], t.nis)

	return t.Estimate(), nil
}

// Initialized returns true if the tracker has been initialized.
func (t *Tracker) Initialized() bool {
	return t.est != nil
}

// Timestamp returns timestamp of the last processed measurement [us].
func (t *Tracker) Timestamp() int64 {
	return t.ts
}

// Estimate returns a copy of the current estimate or nil if the tracker is not initialized.
func (t *Tracker) Estimate() fusion.Estimate {
	if t.est == nil {
		return nil
	}

	est, err := estimate.NewBaseWithCov(t.est.Val(), t.est.Cov())
	if err != nil {
		return nil
	}

	return est
}

// State returns current state [px, py, v, yaw, yawd] or nil if the tracker is not initialized.
func (t *Tracker) State() mat.Vector {
	if t.est == nil {
		return nil
	}

	return t.est.Val()
}

// Cov returns current state covariance or nil if the tracker is not initialized.
func (t *Tracker) Cov() mat.Symmetric {
	if t.est == nil {
		return nil
	}

	return t.est.Cov()
}

// NIS returns normalized innovation squared of the last correction.
func (t *Tracker) NIS() float64 {
	return t.nis
}

// NISHistory returns NIS of all corrections made with measurements of sensor s.
func (t *Tracker) NISHistory(s fusion.Sensor) []float64 {
	hist := make([]float64, len(t.nisHist[s]))
	copy(hist, t.nisHist[s])

	return hist
}

// Reset returns the tracker to its uninitialized state.
func (t *Tracker) Reset() {
	t.est = nil
	t.ts = 0
	t.nis = 0
	t.nisHist = make(map[fusion.Sensor][]float64)
}

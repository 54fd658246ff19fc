package tracker

import (
	"fmt"
	"math"
	"os"

	fusion "github.com/milosgajdos/go-fusion"
	"github.com/milosgajdos/go-fusion/kalman/ukf"
	"github.com/milosgajdos/go-fusion/model"
	"gopkg.in/yaml.v3"
)

const (
	// UKF selects Unscented Kalman Filter
	UKF = "ukf"
	// EKF selects Extended Kalman Filter
	EKF = "ekf"
)

// Config is tracker configuration
type Config struct {
	// Filter is either "ukf" or "ekf"
	Filter string `yaml:"filter"`
	// UsePosition enables position sensor measurements
	UsePosition bool `yaml:"use_position"`
	// UseRangeBearing enables range/bearing sensor measurements
	UseRangeBearing bool `yaml:"use_range_bearing"`
	// StdA is longitudinal acceleration noise std dev [m/s^2]
	StdA float64 `yaml:"std_a"`
	// StdYawdd is yaw acceleration noise std dev [rad/s^2]
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
	// Lambda is UKF sigma point spreading parameter; nil means ukf.DefaultLambda
	Lambda *float64 `yaml:"lambda,omitempty"`
	// InitCov is diagonal of the initial state covariance; empty means identity
	InitCov []float64 `yaml:"init_cov,omitempty"`
}

// DefaultConfig returns default tracker configuration
func DefaultConfig() *Config {
	lambda := ukf.DefaultLambda(model.StateDim)

	return &Config{
		Filter:          UKF,
		UsePosition:     true,
		UseRangeBearing: true,
		StdA:            2.5,
		StdYawdd:        0.9,
		StdPx:           0.15,
		StdPy:           0.15,
		StdR:            0.3,
		StdPhi:          0.03,
		StdRd:           0.3,
		Lambda:          &lambda,
	}
}

// LoadConfig reads YAML configuration from path.
// Fields missing in the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := DefaultConfig()
	if err := yaml.Unmarshal(content, c); err != nil {
		return nil, fmt.Errorf("%w: %v", fusion.ErrInvalidConfig, err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Copy returns a deep copy of the configuration.
func (c *Config) Copy() *Config {
	cc := *c
	if c.Lambda != nil {
		l := *c.Lambda
		cc.Lambda = &l
	}
	if c.InitCov != nil {
		cc.InitCov = append([]float64(nil), c.InitCov...)
	}

	return &cc
}

// Validate checks the configuration.
// It returns fusion.ErrInvalidConfig if any parameter is out of range.
func (c *Config) Validate() error {
	if c.Filter != UKF && c.Filter != EKF {
		return fmt.Errorf("%w: unknown filter: %q", fusion.ErrInvalidConfig, c.Filter)
	}

	if !finite(c.StdA, c.StdYawdd, c.StdPx, c.StdPy, c.StdR, c.StdPhi, c.StdRd) {
		return fmt.Errorf("%w: noise std devs must be finite", fusion.ErrInvalidConfig)
	}

	if c.Lambda != nil && !finite(*c.Lambda) {
		return fmt.Errorf("%w: lambda must be finite: %v", fusion.ErrInvalidConfig, *c.Lambda)
	}

	if !finite(c.InitCov...) {
		return fmt.Errorf("%w: init_cov must be finite: %v", fusion.ErrInvalidConfig, c.InitCov)
	}

	if c.StdA < 0 || c.StdYawdd < 0 {
		return fmt.Errorf("%w: negative process noise: %v, %v", fusion.ErrInvalidConfig, c.StdA, c.StdYawdd)
	}

	for name, std := range map[string]float64{
		"std_px":  c.StdPx,
		"std_py":  c.StdPy,
		"std_r":   c.StdR,
		"std_phi": c.StdPhi,
		"std_rd":  c.StdRd,
	} {
		if std <= 0 {
			return fmt.Errorf("%w: %s must be positive: %v", fusion.ErrInvalidConfig, name, std)
		}
	}

	if c.Lambda != nil && *c.Lambda+model.StateDim+model.NoiseDim <= 0 {
		return fmt.Errorf("%w: lambda too small: %v", fusion.ErrInvalidConfig, *c.Lambda)
	}

	if len(c.InitCov) != 0 {
		if len(c.InitCov) != model.StateDim {
			return fmt.Errorf("%w: init_cov must have %d values: %d", fusion.ErrInvalidConfig, model.StateDim, len(c.InitCov))
		}
		for _, v := range c.InitCov {
			if v <= 0 {
				return fmt.Errorf("%w: init_cov must be positive: %v", fusion.ErrInvalidConfig, c.InitCov)
			}
		}
	}

	return nil
}

// Enabled returns true if measurements of sensor s are processed.
func (c *Config) Enabled(s fusion.Sensor) bool {
	switch s {
	case fusion.PositionSensor:
		return c.UsePosition
	case fusion.RangeBearingSensor:
		return c.UseRangeBearing
	}

	return false
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}

	return true
}

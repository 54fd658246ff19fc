package tracker

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	fusion "github.com/milosgajdos/go-fusion"
	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	assert := assert.New(t)

	c := DefaultConfig()
	assert.NoError(c.Validate())
	assert.Equal(UKF, c.Filter)
	assert.Equal(-2.0, *c.Lambda)
	assert.True(c.Enabled(fusion.PositionSensor))
	assert.True(c.Enabled(fusion.RangeBearingSensor))
	assert.False(c.Enabled(fusion.Sensor(0)))
}

func TestValidate(t *testing.T) {
	assert := assert.New(t)

	tooSmall := -7.0

	for _, mod := range []func(c *Config){
		func(c *Config) { c.Filter = "" },
		func(c *Config) { c.StdA = -1 },
		func(c *Config) { c.StdYawdd = -0.1 },
		func(c *Config) { c.StdPx = 0 },
		func(c *Config) { c.StdPhi = -0.03 },
		func(c *Config) { c.StdRd = 0 },
		func(c *Config) { c.Lambda = &tooSmall },
		func(c *Config) { c.InitCov = []float64{1, 1} },
		func(c *Config) { c.InitCov = []float64{1, 1, 0, 1, 1} },
		func(c *Config) { c.StdA = math.NaN() },
		func(c *Config) { c.StdYawdd = math.Inf(1) },
		func(c *Config) { c.StdPx = math.Inf(1) },
		func(c *Config) { c.StdRd = math.NaN() },
		func(c *Config) { nan := math.NaN(); c.Lambda = &nan },
		func(c *Config) { c.InitCov = []float64{1, 1, math.Inf(1), 1, 1} },
	} {
		c := DefaultConfig()
		mod(c)
		assert.True(errors.Is(c.Validate(), fusion.ErrInvalidConfig))
	}

	// zero process noise is valid
	c := DefaultConfig()
	c.StdA, c.StdYawdd = 0, 0
	assert.NoError(c.Validate())
}

func TestConfigCopy(t *testing.T) {
	assert := assert.New(t)

	c := DefaultConfig()
	c.InitCov = []float64{1, 2, 3, 4, 5}

	cc := c.Copy()
	assert.Equal(c, cc)

	*c.Lambda = 1
	c.InitCov[0] = 10
	c.UsePosition = false

	assert.Equal(-2.0, *cc.Lambda)
	assert.Equal(1.0, cc.InitCov[0])
	assert.True(cc.UsePosition)
}

func TestLoadConfig(t *testing.T) {
	assert := assert.New(t)

	dir := t.TempDir()

	path := filepath.Join(dir, "tracker.yaml")
	content := `filter: ekf
use_range_bearing: false
std_a: 1.5
init_cov: [0.1, 0.1, 1, 1, 1]
`
	assert.NoError(os.WriteFile(path, []byte(content), 0o644))

	c, err := LoadConfig(path)
	assert.NoError(err)
	assert.Equal(EKF, c.Filter)
	assert.False(c.UseRangeBearing)
	assert.Equal(1.5, c.StdA)
	assert.Equal([]float64{0.1, 0.1, 1, 1, 1}, c.InitCov)
	// omitted fields keep defaults
	assert.True(c.UsePosition)
	assert.Equal(0.9, c.StdYawdd)
	assert.Equal(0.03, c.StdPhi)
	assert.Equal(-2.0, *c.Lambda)

	tr, err := New(c)
	assert.NoError(err)
	assert.NotNil(tr)

	// invalid values
	path = filepath.Join(dir, "invalid.yaml")
	assert.NoError(os.WriteFile(path, []byte("std_r: -1\n"), 0o644))
	c, err = LoadConfig(path)
	assert.Nil(c)
	assert.True(errors.Is(err, fusion.ErrInvalidConfig))

	// malformed yaml
	path = filepath.Join(dir, "malformed.yaml")
	assert.NoError(os.WriteFile(path, []byte("std_a: [1, 2\n"), 0o644))
	c, err = LoadConfig(path)
	assert.Nil(c)
	assert.True(errors.Is(err, fusion.ErrInvalidConfig))

	// missing file
	c, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Nil(c)
	assert.Error(err)
}

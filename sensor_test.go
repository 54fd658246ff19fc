package fusion

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSensor(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("position", PositionSensor.String())
	assert.Equal("range-bearing", RangeBearingSensor.String())
	assert.Equal("Sensor(7)", Sensor(7).String())

	assert.Equal(2, PositionSensor.Dim())
	assert.Equal(3, RangeBearingSensor.Dim())
	assert.Equal(0, Sensor(0).Dim())
}

func TestMeasurementValidate(t *testing.T) {
	assert := assert.New(t)

	for _, test := range []struct {
		m  Measurement
		ok bool
	}{
		{Measurement{Sensor: PositionSensor, Values: []float64{1, 2}}, true},
		{Measurement{Sensor: RangeBearingSensor, Values: []float64{1, 0.1, 2}}, true},
		{Measurement{Sensor: PositionSensor, Values: []float64{1, 2, 3}}, false},
		{Measurement{Sensor: RangeBearingSensor, Values: []float64{1, 2}}, false},
		{Measurement{Sensor: Sensor(10), Values: []float64{1, 2}}, false},
		{Measurement{Sensor: PositionSensor, Values: []float64{math.NaN(), 2}}, false},
		{Measurement{Sensor: PositionSensor, Values: []float64{1, math.Inf(1)}}, false},
	} {
		err := test.m.Validate()
		if test.ok {
			assert.NoError(err)
			continue
		}
		assert.Error(err)
		assert.True(errors.Is(err, ErrInvalidMeasurement))
	}
}

func TestMeasurementVec(t *testing.T) {
	assert := assert.New(t)

	m := Measurement{Sensor: PositionSensor, Values: []float64{5.0, 3.0}}
	v := m.Vec()
	assert.Equal(2, v.Len())
	assert.Equal(5.0, v.AtVec(0))

	// vector must not alias measurement values
	v.SetVec(0, 1.0)
	assert.Equal(5.0, m.Values[0])
}

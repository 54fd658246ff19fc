package fusion

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Sensor identifies the sensor modality which produced a measurement.
type Sensor int

const (
	// PositionSensor measures Cartesian position [x, y].
	PositionSensor Sensor = iota + 1
	// RangeBearingSensor measures [range, bearing, range rate].
	RangeBearingSensor
)

// String implements the Stringer interface.
func (s Sensor) String() string {
	switch s {
	case PositionSensor:
		return "position"
	case RangeBearingSensor:
		return "range-bearing"
	default:
		return fmt.Sprintf("Sensor(%d)", int(s))
	}
}

// Dim returns the number of raw values the sensor reports.
// It returns 0 for unknown sensors.
func (s Sensor) Dim() int {
	switch s {
	case PositionSensor:
		return 2
	case RangeBearingSensor:
		return 3
	default:
		return 0
	}
}

// Measurement is a single sensor observation.
type Measurement struct {
	// Sensor is the sensor which produced the measurement
	Sensor Sensor
	// Timestamp is measurement time in microseconds
	Timestamp int64
	// Values are raw sensor values
	Values []float64
}

// Validate checks the sensor is known and values match its dimension.
func (m Measurement) Validate() error {
	dim := m.Sensor.Dim()
	if dim == 0 {
		return fmt.Errorf("%w: unknown sensor %v", ErrInvalidMeasurement, m.Sensor)
	}

	if len(m.Values) != dim {
		return fmt.Errorf("%w: %v expects %d values, got %d", ErrInvalidMeasurement, m.Sensor, dim, len(m.Values))
	}

	for i, v := range m.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: value %d is not finite", ErrInvalidMeasurement, i)
		}
	}

	return nil
}

// Vec returns measurement values as a new vector.
func (m Measurement) Vec() *mat.VecDense {
	data := make([]float64, len(m.Values))
	copy(data, m.Values)

	return mat.NewVecDense(len(data), data)
}

package fusion

import "errors"

var (
	// ErrNotPositiveDefinite is returned when a covariance can't be factorized.
	ErrNotPositiveDefinite = errors.New("covariance is not positive definite")
	// ErrZeroRange is returned when a state projects onto the sensor origin.
	ErrZeroRange = errors.New("degenerate geometry: zero range")
	// ErrSingularInnovation is returned when innovation covariance can't be inverted.
	ErrSingularInnovation = errors.New("singular innovation covariance")
	// ErrNonMonotonicTime is returned for negative time steps.
	ErrNonMonotonicTime = errors.New("non-monotonic timestamp")
	// ErrInvalidMeasurement is returned for malformed measurements.
	ErrInvalidMeasurement = errors.New("invalid measurement")
	// ErrInvalidConfig is returned for invalid filter or model configuration.
	ErrInvalidConfig = errors.New("invalid config")
)

package sim

import (
	"fmt"

	fusion "github.com/milosgajdos/go-fusion"
	"gonum.org/v1/gonum/mat"
)

// Processor processes sensor measurements
type Processor interface {
	// Process processes measurement m and returns the updated estimate
	Process(m fusion.Measurement) (fusion.Estimate, error)
}

// Result stores simulation run results
type Result struct {
	// Truth stores ground truth positions in rows
	Truth *mat.Dense
	// Measured stores measured positions in rows
	Measured *mat.Dense
	// Filtered stores estimated positions in rows
	Filtered *mat.Dense
	// Estimates stores estimated states
	Estimates []mat.Vector
	// States stores ground truth states
	States []mat.Vector
	// Rejected counts measurements the processor failed to process
	Rejected int
}

// Run feeds samples to p and collects its estimates.
// Measurements p fails to process are counted but do not stop the run.
// It returns error if samples is empty or if no measurement is processed.
func Run(p Processor, samples []Sample) (*Result, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples to process")
	}

	n := len(samples)
	res := &Result{
		Truth:     mat.NewDense(n, 2, nil),
		Measured:  mat.NewDense(n, 2, nil),
		Estimates: make([]mat.Vector, 0, n),
		States:    make([]mat.Vector, 0, n),
	}
	filtered := make([]float64, 0, 2*n)

	for i, s := range samples {
		res.Truth.SetRow(i, []float64{s.Truth.AtVec(0), s.Truth.AtVec(1)})
		x, y := Position(s.Measurement)
		res.Measured.SetRow(i, []float64{x, y})

		est, err := p.Process(s.Measurement)
		if err != nil {
			res.Rejected++
			continue
		}

		val := est.Val()
		res.Estimates = append(res.Estimates, val)
		res.States = append(res.States, s.Truth)
		filtered = append(filtered, val.AtVec(0), val.AtVec(1))
	}

	if len(res.Estimates) == 0 {
		return nil, fmt.Errorf("no measurement processed")
	}

	res.Filtered = mat.NewDense(len(res.Estimates), 2, filtered)

	return res, nil
}

// RMSE returns Cartesian [px, py, vx, vy] root mean squared error of the run estimates.
func (r *Result) RMSE() (*mat.VecDense, error) {
	est := make([]mat.Vector, len(r.Estimates))
	truth := make([]mat.Vector, len(r.States))

	for i := range r.Estimates {
		est[i] = Cartesian(r.Estimates[i])
		truth[i] = Cartesian(r.States[i])
	}

	return RMSE(est, truth)
}

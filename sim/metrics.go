package sim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// RMSE returns root mean squared error of estimates est against ground truth.
// It returns error if est and truth are empty, differ in length or contain vectors of different lengths.
func RMSE(est, truth []mat.Vector) (*mat.VecDense, error) {
	if len(est) == 0 || len(est) != len(truth) {
		return nil, fmt.Errorf("invalid data length. Estimates: %d, Truth: %d", len(est), len(truth))
	}

	n := est[0].Len()
	rmse := mat.NewVecDense(n, nil)
	diff := mat.NewVecDense(n, nil)

	for i := range est {
		if est[i].Len() != n || truth[i].Len() != n {
			return nil, fmt.Errorf("invalid vector length at %d: %d, %d", i, est[i].Len(), truth[i].Len())
		}

		diff.SubVec(est[i], truth[i])
		diff.MulElemVec(diff, diff)
		rmse.AddVec(rmse, diff)
	}

	rmse.ScaleVec(1/float64(len(est)), rmse)
	for i := 0; i < n; i++ {
		rmse.SetVec(i, math.Sqrt(rmse.AtVec(i)))
	}

	return rmse, nil
}

// NISThreshold returns chi-square distribution quantile p for dof degrees of freedom.
func NISThreshold(dof int, p float64) float64 {
	return distuv.ChiSquared{K: float64(dof)}.Quantile(p)
}

// NISExceedance returns the fraction of nis values above NISThreshold(dof, p).
// A consistent filter exceeds the threshold in about 1-p of the cases.
// It returns error if nis is empty, dof is not positive or p is not in (0, 1).
func NISExceedance(nis []float64, dof int, p float64) (float64, error) {
	if len(nis) == 0 {
		return 0, fmt.Errorf("empty NIS data")
	}

	if dof <= 0 || p <= 0 || p >= 1 {
		return 0, fmt.Errorf("invalid chi-square parameters: dof=%d p=%v", dof, p)
	}

	threshold := NISThreshold(dof, p)

	count := 0
	for _, v := range nis {
		if v > threshold {
			count++
		}
	}

	return float64(count) / float64(len(nis)), nil
}

// MeanNIS returns average of nis values.
// For a consistent filter it approaches the measurement dimension.
func MeanNIS(nis []float64) float64 {
	if len(nis) == 0 {
		return 0
	}

	return floats.Sum(nis) / float64(len(nis))
}

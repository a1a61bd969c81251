// Package glm fits general linear models to voxel time series and computes
// first- and second-level contrast statistics.
package glm

import (
	"fmt"

	"github.com/carbocation/pfx"
	"gonum.org/v1/gonum/mat"
)

// Fit is an ordinary least squares fit of every column of Y on a shared
// design X.
type Fit struct {
	// Beta has one row per design column and one column per voxel.
	Beta *mat.Dense

	// ResidualVariance is the unbiased residual variance of each voxel.
	ResidualVariance []float64

	// DOF is the residual degrees of freedom.
	DOF int

	// XtXInv is (X'X)^-1, needed for contrast variances.
	XtXInv *mat.Dense
}

// RankDeficientError is returned when the design cannot be inverted.
type RankDeficientError struct {
	Err error
}

func (e *RankDeficientError) Error() string {
	return fmt.Sprintf("design matrix is rank deficient: %v", e.Err)
}

func (e *RankDeficientError) Unwrap() error {
	return e.Err
}

// FitOLS regresses every column of y (time x voxel) on x (time x
// regressor).
func FitOLS(y, x mat.Matrix) (Fit, error) {
	n, p := x.Dims()
	ny, v := y.Dims()
	if n != ny {
		return Fit{}, fmt.Errorf("design has %d rows but data has %d", n, ny)
	}
	if n <= p {
		return Fit{}, fmt.Errorf("%d observations cannot fit %d regressors", n, p)
	}

	var xtx mat.Dense
	xtx.Mul(x.T(), x)

	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return Fit{}, pfx.Err(&RankDeficientError{Err: err})
	}

	var xty mat.Dense
	xty.Mul(x.T(), y)

	beta := mat.NewDense(p, v, nil)
	beta.Mul(&xtxInv, &xty)

	var fitted mat.Dense
	fitted.Mul(x, beta)

	dof := n - p
	rss := make([]float64, v)
	for j := 0; j < v; j++ {
		for i := 0; i < n; i++ {
			r := y.At(i, j) - fitted.At(i, j)
			rss[j] += r * r
		}
		rss[j] /= float64(dof)
	}

	return Fit{
		Beta:             beta,
		ResidualVariance: rss,
		DOF:              dof,
		XtXInv:           &xtxInv,
	}, nil
}

// MeanScale converts each column of y in place to percent signal change
// around its own mean. Columns whose mean is zero are set to zero.
func MeanScale(y *mat.Dense) {
	n, v := y.Dims()
	for j := 0; j < v; j++ {
		var mean float64
		for i := 0; i < n; i++ {
			mean += y.At(i, j)
		}
		mean /= float64(n)

		for i := 0; i < n; i++ {
			if mean == 0 {
				y.Set(i, j, 0)
				continue
			}
			y.Set(i, j, 100*(y.At(i, j)/mean-1))
		}
	}
}

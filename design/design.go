// Package design builds first-level design matrices from event tables by
// convolving event boxcars with a hemodynamic response function.
package design

import (
	"fmt"
	"math"
	"sort"

	"github.com/carbocation/fracback/events"
	"github.com/carbocation/fracback/tsv"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"
)

const (
	// DefaultOversampling is the number of high-resolution samples per
	// frame used for convolution.
	DefaultOversampling = 50

	// minOnset is how far before the first frame events are still modeled.
	minOnset = -24.0

	ConstantColumn = "constant"
)

// Options controls Build.
type Options struct {
	// Columns fixes the regressor columns and their order. Trial types not
	// listed are ignored; listed types without events are all-zero. When
	// empty, every trial type in the table is modeled in sorted order.
	Columns []string

	Oversampling int

	// HighPass, in Hz, adds a discrete cosine drift basis with this cutoff.
	HighPass float64

	// Constant adds an intercept column.
	Constant bool
}

// Matrix is a design matrix with one row per frame and named columns.
type Matrix struct {
	Columns []string
	*mat.Dense
}

// Column returns a copy of the named column.
func (m Matrix) Column(name string) ([]float64, error) {
	for j, v := range m.Columns {
		if v == name {
			return mat.Col(nil, j, m.Dense), nil
		}
	}

	return nil, fmt.Errorf("design matrix has no column %s", name)
}

// Frame renders the matrix as a table.
func (m Matrix) Frame() (tsv.Frame, error) {
	return tsv.FromMatrix(m.Columns, m.Dense)
}

// FrameTimes returns the acquisition time of each of n frames.
func FrameTimes(n int, tr float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i) * tr
	}

	return out
}

// Build returns the design matrix of t sampled at frameTimes, which must be
// evenly spaced and increasing.
func Build(t events.Table, frameTimes []float64, opts Options) (Matrix, error) {
	tr, err := repetitionTime(frameTimes)
	if err != nil {
		return Matrix{}, err
	}

	if opts.Oversampling <= 0 {
		opts.Oversampling = DefaultOversampling
	}

	columns := opts.Columns
	if len(columns) == 0 {
		columns = t.TrialTypes()
	}

	byType := make(map[string][]events.Event)
	for _, v := range t.Events {
		byType[v.TrialType] = append(byType[v.TrialType], v)
	}

	hrf := GloverHRF(tr, opts.Oversampling)
	grid := highResolutionGrid(frameTimes, tr, opts.Oversampling)

	var drift []driftColumn
	if opts.HighPass > 0 {
		drift = cosineDrift(opts.HighPass, frameTimes)
	}

	nCols := len(columns) + len(drift)
	if opts.Constant {
		nCols++
	}
	if nCols == 0 {
		return Matrix{}, fmt.Errorf("design has no columns: no events, drift or constant requested")
	}

	out := Matrix{
		Columns: make([]string, 0, nCols),
		Dense:   mat.NewDense(len(frameTimes), nCols, nil),
	}

	for _, col := range columns {
		evs := byType[col]
		if len(evs) > 0 {
			sampled, err := regressor(evs, grid, hrf, frameTimes)
			if err != nil {
				return Matrix{}, fmt.Errorf("%s: %w", col, err)
			}
			out.SetCol(len(out.Columns), sampled)
		}
		out.Columns = append(out.Columns, col)
	}

	for _, d := range drift {
		out.SetCol(len(out.Columns), d.values)
		out.Columns = append(out.Columns, d.name)
	}

	if opts.Constant {
		ones := make([]float64, len(frameTimes))
		for i := range ones {
			ones[i] = 1
		}
		out.SetCol(len(out.Columns), ones)
		out.Columns = append(out.Columns, ConstantColumn)
	}

	return out, nil
}

// Regressors returns exactly the labels columns for t. When t has no events
// the result is an all-zero block with one row per frame, so callers always
// get the shape they asked for.
func Regressors(t events.Table, frameTimes []float64, labels []string) (Matrix, error) {
	if len(labels) == 0 {
		return Matrix{}, fmt.Errorf("no regressor labels requested")
	}
	if len(frameTimes) == 0 {
		return Matrix{}, fmt.Errorf("no frame times")
	}

	if t.Len() == 0 {
		return Matrix{
			Columns: append([]string(nil), labels...),
			Dense:   mat.NewDense(len(frameTimes), len(labels), nil),
		}, nil
	}

	return Build(t, frameTimes, Options{Columns: labels})
}

func repetitionTime(frameTimes []float64) (float64, error) {
	if len(frameTimes) < 2 {
		return 0, fmt.Errorf("need at least 2 frame times, got %d", len(frameTimes))
	}

	tr := frameTimes[1] - frameTimes[0]
	if tr <= 0 {
		return 0, fmt.Errorf("frame times must increase")
	}

	for i := 2; i < len(frameTimes); i++ {
		if step := frameTimes[i] - frameTimes[i-1]; math.Abs(step-tr) > 1e-6*tr {
			return 0, fmt.Errorf("frame times must be evenly spaced: step %d is %g, expected %g", i, step, tr)
		}
	}

	return tr, nil
}

// highResolutionGrid covers minOnset seconds before the first frame to one
// TR after the last.
func highResolutionGrid(frameTimes []float64, tr float64, oversampling int) []float64 {
	dt := tr / float64(oversampling)
	start := frameTimes[0] + minOnset
	end := frameTimes[len(frameTimes)-1] + tr

	n := int(math.Ceil((end-start)/dt)) + 1
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*dt
	}

	return out
}

// regressor builds the boxcar for evs on grid, convolves it with hrf, and
// samples the result at frameTimes.
func regressor(evs []events.Event, grid, hrf, frameTimes []float64) ([]float64, error) {
	box := make([]float64, len(grid)+1)
	for _, v := range evs {
		tmin := sort.SearchFloat64s(grid, v.Onset)
		tmax := sort.SearchFloat64s(grid, v.Onset+v.Duration)
		if tmax <= tmin {
			// Zero-duration events are a single impulse.
			tmax = tmin + 1
		}
		if tmin >= len(grid) {
			continue
		}
		box[tmin]++
		box[tmax]--
	}

	// Integrate the onset/offset markers into boxcars.
	for i := 1; i < len(box); i++ {
		box[i] += box[i-1]
	}
	box = box[:len(grid)]

	conv := make([]float64, len(grid))
	for i := range conv {
		var sum float64
		for k := 0; k < len(hrf) && k <= i; k++ {
			sum += box[i-k] * hrf[k]
		}
		conv[i] = sum
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(grid, conv); err != nil {
		return nil, err
	}

	out := make([]float64, len(frameTimes))
	for i, ft := range frameTimes {
		out[i] = pl.Predict(ft)
	}

	return out, nil
}

type driftColumn struct {
	name   string
	values []float64
}

// cosineDrift returns the discrete cosine basis removing frequencies below
// highPass Hz.
func cosineDrift(highPass float64, frameTimes []float64) []driftColumn {
	n := len(frameTimes)
	dt := frameTimes[1] - frameTimes[0]

	order := int(math.Floor(2 * float64(n) * highPass * dt))
	if order > n-1 {
		order = n - 1
	}

	norm := math.Sqrt(2.0 / float64(n))
	out := make([]driftColumn, 0, order)
	for k := 1; k <= order; k++ {
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = norm * math.Cos(math.Pi/float64(n)*(float64(i)+0.5)*float64(k))
		}
		out = append(out, driftColumn{name: fmt.Sprintf("drift_%d", k), values: vals})
	}

	return out
}

// DropEmpty removes columns that are zero in every frame, such as a
// condition with no events in a run, and returns the names removed.
func (m Matrix) DropEmpty() (Matrix, []string) {
	rows, cols := m.Dims()

	var keep []int
	var dropped []string
	for j := 0; j < cols; j++ {
		empty := true
		for i := 0; i < rows; i++ {
			if m.At(i, j) != 0 {
				empty = false
				break
			}
		}
		if empty {
			dropped = append(dropped, m.Columns[j])
			continue
		}
		keep = append(keep, j)
	}

	if len(dropped) == 0 || len(keep) == 0 {
		return m, nil
	}

	out := Matrix{
		Columns: make([]string, 0, len(keep)),
		Dense:   mat.NewDense(rows, len(keep), nil),
	}
	for k, j := range keep {
		out.SetCol(k, mat.Col(nil, j, m.Dense))
		out.Columns = append(out.Columns, m.Columns[j])
	}

	return out, dropped
}

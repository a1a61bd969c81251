// Package confounds prepares nuisance regressors from fMRIPrep confound
// tables and tedana component classifications.
package confounds

import (
	"fmt"
	"math"
	"strconv"

	"github.com/carbocation/fracback/design"
	"github.com/carbocation/fracback/events"
	"github.com/carbocation/fracback/rtdur"
	"github.com/carbocation/fracback/tsv"
	"github.com/carbocation/pfx"
	"github.com/jfcg/butter"
)

// NonSteadyStatePrefix starts the name of each fMRIPrep column flagging a
// non-steady-state volume.
const NonSteadyStatePrefix = "non_steady_state_outlier"

// MotionColumns are the six rigid-body motion parameters.
var MotionColumns = []string{"rot_x", "rot_y", "rot_z", "trans_x", "trans_y", "trans_z"}

// DummyScans returns the number of initial non-steady-state volumes: one
// past the last volume flagged by any outlier column. Flagged volumes are
// assumed to be contiguous from the start of the run.
func DummyScans(f tsv.Frame) (int, error) {
	cols := f.ColumnsWithPrefix(NonSteadyStatePrefix)
	if len(cols) == 0 {
		return 0, nil
	}

	last := -1
	for _, col := range cols {
		vals, err := f.Float64s(col)
		if err != nil {
			return 0, pfx.Err(err)
		}
		for i, v := range vals {
			if !math.IsNaN(v) && v != 0 && i > last {
				last = i
			}
		}
	}

	return last + 1, nil
}

// Motion selects the motion parameters from an fMRIPrep confounds table.
func Motion(f tsv.Frame) (tsv.Frame, error) {
	out, err := f.Select(MotionColumns...)
	if err != nil {
		return tsv.Frame{}, fmt.Errorf("motion confounds: %w", err)
	}

	return out, nil
}

// TaskRegressors combines motion parameters with the HRF-convolved
// ConsDurRTDur regressors of evs, so that task-locked signal is protected
// during denoising. nVolumes must match the confounds row count.
func TaskRegressors(motion tsv.Frame, evs events.Table, nVolumes int, tr float64, cfg rtdur.Config) (tsv.Frame, error) {
	if motion.Len() != nVolumes {
		return tsv.Frame{}, fmt.Errorf("motion confounds (%d) do not match volumes (%d)", motion.Len(), nVolumes)
	}

	derived, err := rtdur.Reconstruct(evs, cfg)
	if err != nil {
		return tsv.Frame{}, err
	}

	regressors, err := design.Regressors(derived, design.FrameTimes(nVolumes, tr), cfg.Labels())
	if err != nil {
		return tsv.Frame{}, err
	}

	task, err := regressors.Frame()
	if err != nil {
		return tsv.Frame{}, err
	}

	return tsv.HStack(motion, task)
}

// RejectedTimeseries returns the ICA mixing columns of every component that
// tedana classified as rejected. dummyScans rows of zeros are prepended so
// that the result lines up with the full, untruncated run.
func RejectedTimeseries(mixing, metrics tsv.Frame, dummyScans int) (tsv.Frame, error) {
	components, err := metrics.Strings("Component")
	if err != nil {
		return tsv.Frame{}, err
	}
	classes, err := metrics.Strings("classification")
	if err != nil {
		return tsv.Frame{}, err
	}

	var rejected []string
	for i, v := range classes {
		if v == "rejected" {
			rejected = append(rejected, components[i])
		}
	}

	out, err := mixing.Select(rejected...)
	if err != nil {
		return tsv.Frame{}, fmt.Errorf("mixing matrix: %w", err)
	}

	if dummyScans <= 0 {
		return out, nil
	}

	pad := make([][]string, dummyScans, dummyScans+out.Len())
	for i := range pad {
		row := make([]string, len(out.Columns))
		for j := range row {
			row[j] = "0"
		}
		pad[i] = row
	}
	out.Rows = append(pad, out.Rows...)

	return out, nil
}

// HighPass applies a first-order Butterworth high-pass filter with the given
// cutoff to a series sampled every tr seconds.
func HighPass(values []float64, cutoffHz, tr float64) ([]float64, error) {
	wc := 2 * math.Pi * cutoffHz * tr

	filt := butter.NewHighPass1(wc)
	if filt == nil {
		return nil, fmt.Errorf("invalid high-pass filter (attempted wc=%f, but expect .0001 < wc && wc < 3.1415)", wc)
	}

	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = filt.Next(v)
	}

	return out, nil
}

// HighPassFrame filters every column of f in place.
func HighPassFrame(f tsv.Frame, cutoffHz, tr float64) error {
	for _, col := range f.Columns {
		vals, err := f.Float64s(col)
		if err != nil {
			return err
		}

		filtered, err := HighPass(vals, cutoffHz, tr)
		if err != nil {
			return err
		}

		cells := make([]string, len(filtered))
		for i, v := range filtered {
			cells[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := f.Set(col, cells); err != nil {
			return err
		}
	}

	return nil
}

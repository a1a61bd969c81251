package confounds

import (
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/carbocation/fracback/events"
	"github.com/carbocation/fracback/rtdur"
	"github.com/carbocation/fracback/tsv"
	"gopkg.in/guregu/null.v3"
)

func mustRead(t *testing.T, s string) tsv.Frame {
	t.Helper()

	f, err := tsv.Read(strings.NewReader(s))
	if err != nil {
		t.Fatal(err)
	}

	return f
}

func TestDummyScans(t *testing.T) {
	for _, v := range []struct {
		input    string
		expected int
	}{
		{"trans_x\tnon_steady_state_outlier00\tnon_steady_state_outlier01\n0\t1\t0\n0\t0\t1\n0\t0\t0\n", 2},
		{"trans_x\tnon_steady_state_outlier00\n0\t0\n0\t0\n", 0},
		{"trans_x\n0\n0\n", 0},
	} {
		got, err := DummyScans(mustRead(t, v.input))
		if err != nil {
			t.Fatal(err)
		}
		if got != v.expected {
			t.Errorf("expected %d dummy scans, got %d", v.expected, got)
		}
	}
}

func TestMotionMissing(t *testing.T) {
	f := mustRead(t, "rot_x\trot_y\ttrans_x\n0\t0\t0\n")

	_, err := Motion(f)
	var mce *tsv.MissingColumnsError
	if !errors.As(err, &mce) {
		t.Fatalf("expected MissingColumnsError, got %v", err)
	}
	if strings.Join(mce.Columns, ",") != "rot_z,trans_y,trans_z" {
		t.Errorf("unexpected missing columns %v", mce.Columns)
	}
}

func TestTaskRegressors(t *testing.T) {
	var b strings.Builder
	b.WriteString(strings.Join(MotionColumns, "\t") + "\n")
	for i := 0; i < 30; i++ {
		b.WriteString("0\t0\t0\t0\t0\t0\n")
	}
	motion, err := Motion(mustRead(t, b.String()))
	if err != nil {
		t.Fatal(err)
	}

	evs := events.Table{Events: []events.Event{
		{Onset: 4, Duration: 2, TrialType: "0back", ResponseTime: null.FloatFrom(0.6)},
		{Onset: 20, Duration: 2, TrialType: "2BACK"},
		{Onset: 30, Duration: 10, TrialType: "fixation"},
	}}

	out, err := TaskRegressors(motion, evs, 30, 2.0, rtdur.DenoiseConfig())
	if err != nil {
		t.Fatal(err)
	}

	expected := append(append([]string(nil), MotionColumns...), "zero_back", "two_back", "RTDur")
	if strings.Join(out.Columns, ",") != strings.Join(expected, ",") {
		t.Errorf("unexpected columns %v", out.Columns)
	}
	if out.Len() != 30 {
		t.Errorf("expected 30 rows, got %d", out.Len())
	}

	if _, err := TaskRegressors(motion, evs, 31, 2.0, rtdur.DenoiseConfig()); err == nil {
		t.Error("expected a volume mismatch error")
	}

	// No matching trials still yields the three task columns.
	empty, err := TaskRegressors(motion, events.Table{}, 30, 2.0, rtdur.DenoiseConfig())
	if err != nil {
		t.Fatal(err)
	}
	if len(empty.Columns) != 9 {
		t.Errorf("expected 9 columns, got %v", empty.Columns)
	}
}

func TestRejectedTimeseries(t *testing.T) {
	mixing := mustRead(t, "ICA_00\tICA_01\tICA_02\n1\t2\t3\n4\t5\t6\n")
	metrics := mustRead(t, "Component\tclassification\tkappa\nICA_00\taccepted\t40\nICA_01\trejected\t10\nICA_02\trejected\t12\n")

	out, err := RejectedTimeseries(mixing, metrics, 2)
	if err != nil {
		t.Fatal(err)
	}

	if strings.Join(out.Columns, ",") != "ICA_01,ICA_02" {
		t.Errorf("unexpected columns %v", out.Columns)
	}
	if out.Len() != 4 {
		t.Fatalf("expected 4 rows, got %d", out.Len())
	}
	if strings.Join(out.Rows[0], ",") != "0,0" || strings.Join(out.Rows[3], ",") != "5,6" {
		t.Errorf("unexpected rows %v", out.Rows)
	}
}

func TestHighPass(t *testing.T) {
	n := 200
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = 5
	}

	out, err := HighPass(vals, 0.01, 2.0)
	if err != nil {
		t.Fatal(err)
	}

	// A constant input decays toward zero.
	if math.Abs(out[n-1]) > 0.5 {
		t.Errorf("expected the constant to be removed, got %f", out[n-1])
	}

	if _, err := HighPass(vals, 0, 2.0); err == nil {
		t.Error("expected an error for a zero cutoff")
	}
}

func TestTedanaInputsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub-01_ses-1_task-fracback_acq-MBME"+ManifestSuffix)

	in := TedanaInputs{
		Prefix:     "sub-01_ses-1_task-fracback_acq-MBME",
		Data:       []string{"e1.nii.gz", "e2.nii.gz"},
		EchoTimes:  []float64{14.2, 38.93},
		DummyScans: 3,
		Tree:       TreeFor("sub-01_ses-1_task-fracback_acq-MBME"),
	}
	if err := in.WriteFile(path); err != nil {
		t.Fatal(err)
	}

	out, err := ReadTedanaInputs(path)
	if err != nil {
		t.Fatal(err)
	}
	out.ManifestPath = ""
	if !reflect.DeepEqual(in, out) {
		t.Errorf("expected %+v, got %+v", in, out)
	}

	if TreeFor("sub-01_ses-1_task-rest_acq-MBME") != TreeRest || out.Tree != TreeTask {
		t.Errorf("unexpected trees")
	}
}

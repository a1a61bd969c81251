package tsv

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

const confounds = "trans_x\ttrans_y\tnon_steady_state_outlier00\tnon_steady_state_outlier01\n" +
	"0.1\t0.2\t1\t0\n" +
	"0.3\tn/a\t0\t1\n" +
	"0.5\t0.6\t0\t0\n"

func TestReadAndSelect(t *testing.T) {
	f, err := Read(strings.NewReader(confounds))
	if err != nil {
		t.Fatal(err)
	}

	if f.Len() != 3 || len(f.Columns) != 4 {
		t.Fatalf("unexpected shape %d x %d", f.Len(), len(f.Columns))
	}

	if got := f.ColumnsWithPrefix("non_steady_state_outlier"); len(got) != 2 {
		t.Errorf("expected 2 outlier columns, got %v", got)
	}

	ty, err := f.Float64s("trans_y")
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(ty[1]) || ty[2] != 0.6 {
		t.Errorf("unexpected trans_y %v", ty)
	}

	_, err = f.Select("trans_x", "rot_x", "rot_y")
	var mce *MissingColumnsError
	if !errors.As(err, &mce) {
		t.Fatalf("expected MissingColumnsError, got %v", err)
	}
	if strings.Join(mce.Columns, ",") != "rot_x,rot_y" {
		t.Errorf("unexpected missing columns %v", mce.Columns)
	}
}

func TestMatrixRoundTrip(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 2.5, math.NaN(), -4})

	f, err := FromMatrix([]string{"a", "b"}, m)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}
	if expected := "a\tb\n1\t2.5\nn/a\t-4\n"; buf.String() != expected {
		t.Errorf("expected %q, got %q", expected, buf.String())
	}

	back, err := Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	bm, err := back.Matrix()
	if err != nil {
		t.Fatal(err)
	}
	if bm.At(0, 1) != 2.5 || !math.IsNaN(bm.At(1, 0)) {
		t.Errorf("unexpected matrix %v", mat.Formatted(bm))
	}
}

func TestHStackAndTail(t *testing.T) {
	a := Frame{Columns: []string{"a"}, Rows: [][]string{{"1"}, {"2"}, {"3"}}}
	b := Frame{Columns: []string{"b"}, Rows: [][]string{{"4"}, {"5"}, {"6"}}}

	ab, err := HStack(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(ab.Rows[2], ",") != "3,6" {
		t.Errorf("unexpected row %v", ab.Rows[2])
	}

	if tail := ab.Tail(2); tail.Len() != 1 || tail.Rows[0][1] != "6" {
		t.Errorf("unexpected tail %+v", tail)
	}

	if _, err := HStack(a, a); err == nil {
		t.Error("expected an error for duplicated columns")
	}
	if _, err := HStack(a, Frame{Columns: []string{"c"}, Rows: [][]string{{"1"}}}); err == nil {
		t.Error("expected an error for mismatched row counts")
	}
}

func TestSet(t *testing.T) {
	f := Frame{Columns: []string{"filename", "acq_time"}, Rows: [][]string{{"func/a.nii.gz", "x"}}}

	if err := f.Set("acq_time", []string{"1800-01-01T10:00:00"}); err != nil {
		t.Fatal(err)
	}
	if err := f.Set("operator", []string{"n/a"}); err != nil {
		t.Fatal(err)
	}
	if strings.Join(f.Rows[0], ",") != "func/a.nii.gz,1800-01-01T10:00:00,n/a" {
		t.Errorf("unexpected row %v", f.Rows[0])
	}
	if err := f.Set("x", nil); err == nil {
		t.Error("expected a length error")
	}
}

func TestClone(t *testing.T) {
	f := Frame{Columns: []string{"a"}, Rows: [][]string{{"1"}, {"2"}}}

	c := f.Clone()
	c.Rows[0][0] = "changed"
	c.Columns[0] = "b"

	if f.Rows[0][0] != "1" || f.Columns[0] != "a" {
		t.Errorf("clone shares memory with the original")
	}
}

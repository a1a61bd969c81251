package glm

import (
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestFitOLSRecoversBetas(t *testing.T) {
	// y0 = 2 + 3x exactly; y1 = -1 + 0.5x plus alternating noise.
	n := 20
	x := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		xi := float64(i)
		x.Set(i, 0, 1)
		x.Set(i, 1, xi)
		y.Set(i, 0, 2+3*xi)
		noise := 0.1
		if i%2 == 1 {
			noise = -0.1
		}
		y.Set(i, 1, -1+0.5*xi+noise)
	}

	fit, err := FitOLS(y, x)
	if err != nil {
		t.Fatal(err)
	}

	if fit.DOF != n-2 {
		t.Errorf("expected %d dof, got %d", n-2, fit.DOF)
	}
	if !approx(fit.Beta.At(0, 0), 2, 1e-9) || !approx(fit.Beta.At(1, 0), 3, 1e-9) {
		t.Errorf("unexpected betas for exact voxel: %g %g", fit.Beta.At(0, 0), fit.Beta.At(1, 0))
	}
	if !approx(fit.ResidualVariance[0], 0, 1e-12) {
		t.Errorf("expected zero residual variance, got %g", fit.ResidualVariance[0])
	}
	if !approx(fit.Beta.At(1, 1), 0.5, 0.02) {
		t.Errorf("unexpected slope for noisy voxel: %g", fit.Beta.At(1, 1))
	}
	if fit.ResidualVariance[1] <= 0 {
		t.Errorf("expected positive residual variance, got %g", fit.ResidualVariance[1])
	}
}

func TestFitOLSRankDeficient(t *testing.T) {
	n := 10
	x := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, float64(i))
		x.Set(i, 1, 2*float64(i))
		y.Set(i, 0, float64(i))
	}

	_, err := FitOLS(y, x)
	var rd *RankDeficientError
	if !errors.As(err, &rd) {
		t.Errorf("expected a rank deficiency error, got %v", err)
	}
}

func TestFitOLSShapeErrors(t *testing.T) {
	if _, err := FitOLS(mat.NewDense(3, 1, nil), mat.NewDense(4, 1, nil)); err == nil {
		t.Errorf("expected an error for mismatched rows")
	}
	if _, err := FitOLS(mat.NewDense(2, 1, nil), mat.NewDense(2, 2, nil)); err == nil {
		t.Errorf("expected an error without residual degrees of freedom")
	}
}

func TestContrastVector(t *testing.T) {
	cols := []string{"zero_back", "two_back", "RTDur", "constant"}

	for _, v := range []struct {
		expr     string
		expected []float64
	}{
		{"two_back - zero_back", []float64{-1, 1, 0, 0}},
		{"two_back-zero_back", []float64{-1, 1, 0, 0}},
		{"RTDur", []float64{0, 0, 1, 0}},
		{"-zero_back + 2*two_back - 0.5*RTDur", []float64{-1, 2, -0.5, 0}},
	} {
		got, err := ContrastVector(cols, v.expr)
		if err != nil {
			t.Errorf("%q: %v", v.expr, err)
			continue
		}
		if !reflect.DeepEqual(got, v.expected) {
			t.Errorf("%q: expected %v, got %v", v.expr, v.expected, got)
		}
	}

	for _, bad := range []string{"", "one_back", "x*two_back", "two_back -"} {
		if _, err := ContrastVector(cols, bad); err == nil {
			t.Errorf("%q: expected an error", bad)
		}
	}
}

func TestContrast(t *testing.T) {
	n := 40
	x := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a, b := 0.0, 0.0
		if i%4 == 0 {
			a = 1
		}
		if i%4 == 2 {
			b = 1
		}
		x.Set(i, 0, a)
		x.Set(i, 1, b)
		x.Set(i, 2, 1)

		noise := 0.05 * float64(i%3-1)
		y.Set(i, 0, 1*a+3*b+10+noise)
	}

	fit, err := FitOLS(y, x)
	if err != nil {
		t.Fatal(err)
	}

	w, err := ContrastVector([]string{"zero_back", "two_back", "constant"}, "two_back - zero_back")
	if err != nil {
		t.Fatal(err)
	}

	est, err := Contrast(fit, w)
	if err != nil {
		t.Fatal(err)
	}
	if !approx(est.Effect[0], 2, 0.05) {
		t.Errorf("expected effect near 2, got %g", est.Effect[0])
	}
	if est.T[0] <= 0 || est.Z[0] <= 0 {
		t.Errorf("expected positive statistics, got t=%g z=%g", est.T[0], est.Z[0])
	}
	if est.Z[0] > est.T[0] {
		t.Errorf("z (%g) should not exceed t (%g)", est.Z[0], est.T[0])
	}

	if _, err := Contrast(fit, []float64{1}); err == nil {
		t.Errorf("expected an error for a short contrast")
	}
}

func TestTToZ(t *testing.T) {
	if z := TToZ(0, 10); z != 0 {
		t.Errorf("expected 0, got %g", z)
	}

	// With many degrees of freedom t and z agree.
	if z := TToZ(2.5, 100000); !approx(z, 2.5, 1e-3) {
		t.Errorf("expected about 2.5, got %g", z)
	}

	if a, b := TToZ(3, 12), TToZ(-3, 12); !approx(a, -b, 1e-12) {
		t.Errorf("expected symmetry, got %g and %g", a, b)
	}

	if z := TToZ(1e6, 20); math.IsInf(z, 0) || math.IsNaN(z) || z < 8 {
		t.Errorf("expected a large finite z, got %g", z)
	}
}

func TestOneSample(t *testing.T) {
	maps := [][]float64{
		{1, 5, -2},
		{2, 5, -2},
		{3, 5, -2},
	}

	est, err := OneSampleTest(maps)
	if err != nil {
		t.Fatal(err)
	}

	if est.DOF != 2 {
		t.Errorf("expected 2 dof, got %d", est.DOF)
	}
	if !approx(est.Effect[0], 2, 1e-12) {
		t.Errorf("expected mean 2, got %g", est.Effect[0])
	}
	// Sample standard deviation 1, so t = 2 / (1/sqrt(3)).
	if !approx(est.T[0], 2*math.Sqrt(3), 1e-9) {
		t.Errorf("expected t %g, got %g", 2*math.Sqrt(3), est.T[0])
	}

	// No variance means no statistic.
	if est.T[1] != 0 || est.Z[2] != 0 {
		t.Errorf("expected zero statistics for constant voxels, got %g %g", est.T[1], est.Z[2])
	}

	if _, err := OneSampleTest(maps[:1]); err == nil {
		t.Errorf("expected an error for a single map")
	}
	if _, err := OneSampleTest([][]float64{{1, 2}, {1}}); err == nil {
		t.Errorf("expected an error for unequal maps")
	}
}

func TestClusterThreshold(t *testing.T) {
	dims := [3]int{4, 3, 2}
	z := make([]float64, 24)
	idx := func(x, y, zz int) int { return x + 4*(y+3*zz) }

	// A positive cluster of 3 voxels spanning two slices.
	z[idx(0, 0, 0)] = 4
	z[idx(1, 0, 0)] = 5
	z[idx(1, 0, 1)] = 3.5

	// A diagonal neighbour is not 6-connected.
	z[idx(3, 2, 0)] = 4

	// A negative cluster of 2 voxels.
	z[idx(3, 0, 1)] = -4
	z[idx(3, 1, 1)] = -6

	out, clusters, err := ClusterThreshold(z, dims, nil, 3, 2, true)
	if err != nil {
		t.Fatal(err)
	}

	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d: %+v", len(clusters), clusters)
	}
	if clusters[0].Size != 3 || clusters[0].Peak != 5 || clusters[0].PeakVoxel != idx(1, 0, 0) {
		t.Errorf("unexpected first cluster %+v", clusters[0])
	}
	if clusters[1].Size != 2 || clusters[1].Peak != -6 {
		t.Errorf("unexpected second cluster %+v", clusters[1])
	}
	if out[idx(3, 2, 0)] != 0 {
		t.Errorf("isolated voxel should be removed")
	}
	if out[idx(1, 0, 1)] != 3.5 || out[idx(3, 1, 1)] != -6 {
		t.Errorf("cluster voxels should keep their values")
	}

	// One sided drops the negative cluster.
	_, clusters, err = ClusterThreshold(z, dims, nil, 3, 2, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 1 {
		t.Errorf("expected 1 cluster, got %d", len(clusters))
	}

	// Masking out the bridge voxel splits the positive cluster.
	mask := []int{idx(0, 0, 0), idx(1, 0, 1)}
	_, clusters, err = ClusterThreshold(z, dims, mask, 3, 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(clusters) != 2 || clusters[0].Size != 1 {
		t.Errorf("expected two singleton clusters, got %+v", clusters)
	}

	if _, _, err := ClusterThreshold(z[:5], dims, nil, 3, 1, false); err == nil {
		t.Errorf("expected an error for a short map")
	}
}

func TestZForP(t *testing.T) {
	if z := ZForP(0.001, false); !approx(z, 3.0902, 1e-3) {
		t.Errorf("expected about 3.09, got %g", z)
	}
	if z := ZForP(0.05, true); !approx(z, 1.96, 1e-2) {
		t.Errorf("expected about 1.96, got %g", z)
	}
}

func TestNpyRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.npy")
	data := []float64{1, -2.5, 3, 0, 1e-3, 6}

	if err := WriteNpy(path, data, []int{2, 3}); err != nil {
		t.Fatal(err)
	}

	back, shape, err := ReadNpy(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(back, data) || !reflect.DeepEqual(shape, []int{2, 3}) {
		t.Errorf("expected %v %v, got %v %v", data, []int{2, 3}, back, shape)
	}

	if err := WriteNpy(path, data, []int{4}); err == nil {
		t.Errorf("expected an error for a mismatched shape")
	}
}

func TestMeanScale(t *testing.T) {
	y := mat.NewDense(4, 2, []float64{
		90, 0,
		110, 0,
		90, 0,
		110, 0,
	})
	MeanScale(y)

	expected := []float64{-10, 10, -10, 10}
	for i, v := range expected {
		if !approx(y.At(i, 0), v, 1e-12) {
			t.Errorf("row %d: expected %g, got %g", i, v, y.At(i, 0))
		}
		if y.At(i, 1) != 0 {
			t.Errorf("row %d: zero-mean column should stay zero, got %g", i, y.At(i, 1))
		}
	}
}

func TestClusterTable(t *testing.T) {
	dims := [3]int{4, 3, 2}
	clusters := []Cluster{
		{Size: 12, Peak: 5.5, PeakVoxel: 1 + 4*(2+3*1)},
		{Size: 10, Peak: -4.0, PeakVoxel: 0},
	}

	rows := ClusterRows(clusters, dims)
	expected := []ClusterRow{
		{ClusterID: 1, Size: 12, PeakStat: 5.5, X: 1, Y: 2, Z: 1},
		{ClusterID: 2, Size: 10, PeakStat: -4.0, X: 0, Y: 0, Z: 0},
	}
	if !reflect.DeepEqual(rows, expected) {
		t.Fatalf("expected %+v, got %+v", expected, rows)
	}

	var buf strings.Builder
	if err := WriteClusterTable(&buf, rows); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 rows, got %q", buf.String())
	}
	if lines[0] != "cluster_id\tsize\tpeak_stat\tx\ty\tz" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if lines[1] != "1\t12\t5.5\t1\t2\t1" {
		t.Errorf("unexpected first row %q", lines[1])
	}

	buf.Reset()
	if err := WriteClusterTable(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != lines[0] {
		t.Errorf("empty table should still have a header, got %q", buf.String())
	}
}

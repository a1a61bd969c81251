package glm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Estimate holds per-voxel contrast statistics.
type Estimate struct {
	Effect   []float64
	Variance []float64
	T        []float64
	Z        []float64
	DOF      int
}

// Contrast evaluates the weighted combination of regressors at every voxel.
func Contrast(fit Fit, weights []float64) (Estimate, error) {
	p, v := fit.Beta.Dims()
	if len(weights) != p {
		return Estimate{}, fmt.Errorf("contrast has %d weights but the design has %d columns", len(weights), p)
	}

	c := mat.NewVecDense(p, weights)
	scale := mat.Inner(c, fit.XtXInv, c)

	out := Estimate{
		Effect:   make([]float64, v),
		Variance: make([]float64, v),
		T:        make([]float64, v),
		Z:        make([]float64, v),
		DOF:      fit.DOF,
	}

	for j := 0; j < v; j++ {
		effect := mat.Dot(c, fit.Beta.ColView(j))
		variance := scale * fit.ResidualVariance[j]

		out.Effect[j] = effect
		out.Variance[j] = variance
		out.T[j] = tStat(effect, variance)
		out.Z[j] = TToZ(out.T[j], fit.DOF)
	}

	return out, nil
}

func tStat(effect, variance float64) float64 {
	if variance <= 0 || math.IsNaN(variance) {
		return 0
	}
	return effect / math.Sqrt(variance)
}

// TToZ converts a t statistic to the z score with the same upper tail
// probability.
func TToZ(t float64, dof int) float64 {
	if math.IsNaN(t) || dof < 1 {
		return 0
	}

	// Work in the upper tail of |t| for precision, then restore the sign.
	sign := 1.0
	if t < 0 {
		sign = -1
		t = -t
	}

	p := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(dof)}.Survival(t)
	if p >= 0.5 {
		return 0
	}
	if p < minP {
		p = minP
	}

	return -sign * distuv.UnitNormal.Quantile(p)
}

const minP = 1e-300

// ContrastVector parses expressions such as "two_back - zero_back" or
// "2*two_back - RTDur" into weights over columns.
func ContrastVector(columns []string, expr string) ([]float64, error) {
	index := make(map[string]int, len(columns))
	for i, v := range columns {
		index[v] = i
	}

	weights := make([]float64, len(columns))

	s := strings.ReplaceAll(expr, " ", "")
	if s == "" {
		return nil, fmt.Errorf("empty contrast")
	}

	terms := 0
	for len(s) > 0 {
		sign := 1.0
		switch s[0] {
		case '+':
			s = s[1:]
		case '-':
			sign = -1
			s = s[1:]
		}

		end := strings.IndexAny(s, "+-")
		term := s
		if end >= 0 {
			term = s[:end]
			s = s[end:]
		} else {
			s = ""
		}

		coef := 1.0
		name := term
		if parts := strings.SplitN(term, "*", 2); len(parts) == 2 {
			c, err := strconv.ParseFloat(parts[0], 64)
			if err != nil {
				return nil, fmt.Errorf("contrast %q: bad coefficient %q", expr, parts[0])
			}
			coef = c
			name = parts[1]
		}

		idx, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("contrast %q: %q is not a design column (have %v)", expr, name, columns)
		}

		weights[idx] += sign * coef
		terms++
	}

	if terms == 0 {
		return nil, fmt.Errorf("contrast %q has no terms", expr)
	}

	return weights, nil
}

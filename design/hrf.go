package design

import (
	"math"

	"github.com/BenLubar/memoize"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Glover (1999) HRF parameters, in seconds.
const (
	gloverDelay      = 6.0
	gloverUndershoot = 12.0
	gloverDispersion = 0.9
	gloverURatio     = 0.35
	hrfLength        = 32.0
)

var memoizedGlover = memoize.Memoize(gloverHRF)

// GloverHRF samples the Glover hemodynamic response function every
// tr/oversampling seconds over 32 seconds. The kernel sums to one. The
// returned slice is shared between callers and must not be modified.
func GloverHRF(tr float64, oversampling int) []float64 {
	return memoizedGlover.(func(float64, int) []float64)(tr, oversampling)
}

func gloverHRF(tr float64, oversampling int) []float64 {
	dt := tr / float64(oversampling)
	n := int(math.Round(hrfLength / dt))
	if n < 2 {
		n = 2
	}

	peak := distuv.Gamma{Alpha: gloverDelay / gloverDispersion, Beta: 1 / gloverDispersion}
	undershoot := distuv.Gamma{Alpha: gloverUndershoot / gloverDispersion, Beta: 1 / gloverDispersion}

	out := make([]float64, n)
	step := hrfLength / float64(n-1)
	for i := range out {
		// Shifted by one sample so that the kernel starts at zero.
		t := float64(i)*step - dt
		out[i] = peak.Prob(t) - gloverURatio*undershoot.Prob(t)
	}

	if sum := floats.Sum(out); sum != 0 {
		floats.Scale(1/sum, out)
	}

	return out
}

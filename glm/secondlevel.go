package glm

import (
	"fmt"
	"math"

	"github.com/carbocation/runningvariance"
)

// OneSample tests, voxel by voxel, whether the mean of the subject effect
// maps differs from zero. Maps are streamed so that only one running
// accumulator per voxel is kept.
type OneSample struct {
	stats []*runningvariance.RunningStat
	n     int
}

// NewOneSample prepares a test over maps of nVoxels values.
func NewOneSample(nVoxels int) *OneSample {
	stats := make([]*runningvariance.RunningStat, nVoxels)
	for i := range stats {
		stats[i] = runningvariance.NewRunningStat()
	}

	return &OneSample{stats: stats}
}

// Push adds one subject's effect map.
func (o *OneSample) Push(effect []float64) error {
	if len(effect) != len(o.stats) {
		return fmt.Errorf("map has %d voxels, expected %d", len(effect), len(o.stats))
	}

	for i, v := range effect {
		o.stats[i].Push(v)
	}
	o.n++

	return nil
}

// N is the number of maps pushed so far.
func (o *OneSample) N() int {
	return o.n
}

// Estimate returns the group mean with its t and z statistics on n-1
// degrees of freedom.
func (o *OneSample) Estimate() (Estimate, error) {
	if o.n < 2 {
		return Estimate{}, fmt.Errorf("a one-sample test needs at least 2 maps, have %d", o.n)
	}

	v := len(o.stats)
	out := Estimate{
		Effect:   make([]float64, v),
		Variance: make([]float64, v),
		T:        make([]float64, v),
		Z:        make([]float64, v),
		DOF:      o.n - 1,
	}

	for i, s := range o.stats {
		sd := s.StandardDeviation()
		out.Effect[i] = s.Mean()
		out.Variance[i] = sd * sd / float64(o.n)
		if math.IsNaN(out.Variance[i]) {
			out.Variance[i] = 0
		}
		out.T[i] = tStat(out.Effect[i], out.Variance[i])
		out.Z[i] = TToZ(out.T[i], out.DOF)
	}

	return out, nil
}

// OneSampleTest runs a one-sample test over the given maps.
func OneSampleTest(maps [][]float64) (Estimate, error) {
	if len(maps) < 2 {
		return Estimate{}, fmt.Errorf("a one-sample test needs at least 2 maps, have %d", len(maps))
	}

	o := NewOneSample(len(maps[0]))
	for i, m := range maps {
		if err := o.Push(m); err != nil {
			return Estimate{}, fmt.Errorf("map %d: %w", i, err)
		}
	}

	return o.Estimate()
}

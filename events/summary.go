package events

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

// ResponseSummary describes the behavioral responses in a table.
type ResponseSummary struct {
	Trials    int
	Responses int
	MeanRT    float64
	MedianRT  float64
	MinRT     float64
	MaxRT     float64
}

func (s ResponseSummary) String() string {
	return fmt.Sprintf("%d trials, %d responses, RT mean %.3fs median %.3fs range [%.3fs, %.3fs]",
		s.Trials, s.Responses, s.MeanRT, s.MedianRT, s.MinRT, s.MaxRT)
}

// ResponseTimes returns the present response times of t in table order.
func (t Table) ResponseTimes() []float64 {
	out := make([]float64, 0, len(t.Events))
	for _, v := range t.Events {
		if v.ResponseTime.Valid {
			out = append(out, v.ResponseTime.Float64)
		}
	}

	return out
}

// Summarize computes response statistics over every event in t. When there
// are no responses the RT fields are NaN.
func Summarize(t Table) (ResponseSummary, error) {
	rts := t.ResponseTimes()

	out := ResponseSummary{
		Trials:    t.Len(),
		Responses: len(rts),
		MeanRT:    math.NaN(),
		MedianRT:  math.NaN(),
		MinRT:     math.NaN(),
		MaxRT:     math.NaN(),
	}

	if len(rts) == 0 {
		return out, nil
	}

	data := stats.Float64Data(rts)

	var err error
	if out.MeanRT, err = data.Mean(); err != nil {
		return out, err
	}
	if out.MedianRT, err = data.Median(); err != nil {
		return out, err
	}
	if out.MinRT, err = data.Min(); err != nil {
		return out, err
	}
	if out.MaxRT, err = data.Max(); err != nil {
		return out, err
	}

	return out, nil
}

package design

import (
	"io"

	"github.com/wcharczuk/go-chart/v2"
)

// PlotPNG draws every column of m against frameTimes.
func PlotPNG(w io.Writer, m Matrix, frameTimes []float64) error {
	series := make([]chart.Series, 0, len(m.Columns))
	for _, name := range m.Columns {
		vals, err := m.Column(name)
		if err != nil {
			return err
		}

		series = append(series, chart.ContinuousSeries{
			Name:    name,
			XValues: frameTimes,
			YValues: vals,
		})
	}

	graph := chart.Chart{
		Width:  1024,
		Height: 384,
		XAxis: chart.XAxis{
			Name: "Time (s)",
		},
		YAxis: chart.YAxis{
			Name: "Regressor",
		},
		Background: chart.Style{
			Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

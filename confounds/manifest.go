package confounds

import (
	"encoding/json"
	"log"
	"os"
	"strings"

	"github.com/carbocation/fracback"
	"github.com/carbocation/pfx"
)

// Decision trees handed to tedana.
const (
	TreeTask = "tedana_minimal_task.json"
	TreeRest = "tedana_minimal_rest.json"
)

// Output names tedana uses for a run prefix.
const (
	MixingSuffix   = "_desc-ICAOrth_mixing.tsv"
	MetricsSuffix  = "_desc-tedana_metrics.tsv"
	RejectedSuffix = "_desc-rejected_timeseries.tsv"
	ReportSuffix   = "_tedana_report.html"
	ConfoundSuffix = "_confounds.tsv"
	ManifestSuffix = "_tedana_inputs.json"
)

// TedanaInputs records everything needed to run tedana on one multi-echo
// run, and is read back when its outputs are post-processed.
type TedanaInputs struct {
	ManifestPath string `json:"-"`

	Prefix             string    `json:"prefix"`
	Data               []string  `json:"data"`
	EchoTimes          []float64 `json:"echo_times_ms"`
	Mask               string    `json:"mask"`
	OutDir             string    `json:"out_dir"`
	DummyScans         int       `json:"dummy_scans"`
	RepetitionTime     float64   `json:"repetition_time"`
	Volumes            int       `json:"volumes"`
	Tree               string    `json:"tree"`
	ExternalRegressors string    `json:"external_regressors"`
}

// TreeFor picks the decision tree by whether the run is a fracback task run.
func TreeFor(prefix string) string {
	if strings.Contains(prefix, "task-fracback") {
		return TreeTask
	}
	return TreeRest
}

func (t TedanaInputs) WriteFile(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return pfx.Err(err)
	}

	return pfx.Err(os.WriteFile(path, append(data, '\n'), 0644))
}

func ReadTedanaInputs(path string) (TedanaInputs, error) {
	out := TedanaInputs{ManifestPath: path}

	path, err := fracback.ExpandHome(path)
	if err != nil {
		return out, pfx.Err(err)
	}

	f, err := os.Open(path)
	if err != nil {
		return out, pfx.Err(err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&out); err != nil {
		if e, ok := err.(*json.SyntaxError); ok {
			log.Printf("%s: syntax error at byte offset %d", path, e.Offset)
		}
		return out, pfx.Err(err)
	}

	return out, nil
}

package presentation

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/fracback"
	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

// Stimulus is one row of the task's stimulus timing tables. The ungrouped
// table lists every picture with its event_type. The grouped table lists
// the presentation sequence with durations, and trial numbers on the rows
// that are task trials.
type Stimulus struct {
	EventType string  `csv:"event_type"`
	StimFile  string  `csv:"stim_file"`
	Duration  float64 `csv:"duration"`
	Trial     string  `csv:"trial"`
}

// TrialNumber parses the trial column. Rows that are not trials return
// false.
func (s Stimulus) TrialNumber() (int, bool) {
	v := strings.TrimSpace(s.Trial)
	if v == "" || strings.EqualFold(v, "n/a") || strings.EqualFold(v, "nan") {
		return 0, false
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != float64(int(f)) {
		return 0, false
	}

	return int(f), true
}

// ReadStimuli parses a tab-separated stimulus timing table.
func ReadStimuli(r io.Reader) ([]Stimulus, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true

	rows := []*Stimulus{}
	if err := gocsv.UnmarshalCSV(cr, &rows); err != nil {
		return nil, pfx.Err(err)
	}

	out := make([]Stimulus, 0, len(rows))
	for i, v := range rows {
		if v.StimFile == "" {
			return nil, fmt.Errorf("stimulus row %d has no stim_file", i+1)
		}
		out = append(out, *v)
	}

	return out, nil
}

// ReadStimuliFile reads a stimulus table from a local or gs:// path.
func ReadStimuliFile(path string, client *storage.Client) ([]Stimulus, error) {
	f, err := fracback.Open(path, client)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	out, err := ReadStimuli(f)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	return out, nil
}

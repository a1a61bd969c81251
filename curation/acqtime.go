// Package curation anonymizes BIDS datasets before sharing: subject IDs are
// remapped and scan acquisition times are shifted onto a fixed baseline
// date.
package curation

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/carbocation/fracback/events"
	"github.com/carbocation/fracback/tsv"
	"github.com/carbocation/pfx"
)

const (
	AcqTimeColumn = "acq_time"
	AcqTimeLayout = "2006-01-02T15:04:05.999999"
)

// Baseline is the date that the first session of each subject is moved to.
var Baseline = time.Date(1800, time.January, 1, 0, 0, 0, 0, time.UTC)

// ScansFiles lists the per-session scans tables of one subject directory,
// sorted by session.
func ScansFiles(subjectDir string) ([]string, error) {
	out, err := filepath.Glob(filepath.Join(subjectDir, "ses-*", "*_scans.tsv"))
	if err != nil {
		return nil, pfx.Err(err)
	}
	sort.Strings(out)

	return out, nil
}

// AnonymizeAcqTimes shifts the acq_time column of every session of one
// subject by the same whole number of days, chosen so that the date of the
// earliest scan of the first session becomes baseline. Time of day and the
// gaps between sessions are kept. Null times stay null. The inputs are not
// modified.
func AnonymizeAcqTimes(sessions []tsv.Frame, baseline time.Time) ([]tsv.Frame, error) {
	if len(sessions) == 0 {
		return nil, nil
	}

	first, err := parseAcqTimes(sessions[0])
	if err != nil {
		return nil, fmt.Errorf("session 1: %w", err)
	}

	var earliest time.Time
	found := false
	for _, t := range first {
		if t == nil {
			continue
		}
		if !found || t.Before(earliest) {
			earliest = *t
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("session 1 has no %s values", AcqTimeColumn)
	}

	firstDate := time.Date(earliest.Year(), earliest.Month(), earliest.Day(), 0, 0, 0, 0, time.UTC)
	baseDate := time.Date(baseline.Year(), baseline.Month(), baseline.Day(), 0, 0, 0, 0, time.UTC)
	offset := firstDate.Unix() - baseDate.Unix()

	out := make([]tsv.Frame, 0, len(sessions))
	for i, session := range sessions {
		times, err := parseAcqTimes(session)
		if err != nil {
			return nil, fmt.Errorf("session %d: %w", i+1, err)
		}

		shifted := make([]string, len(times))
		for j, t := range times {
			if t == nil {
				shifted[j] = events.NullValue
				continue
			}
			shifted[j] = time.Unix(t.Unix()-offset, int64(t.Nanosecond())).UTC().Format(AcqTimeLayout)
		}

		f := session.Clone()
		if err := f.Set(AcqTimeColumn, shifted); err != nil {
			return nil, pfx.Err(err)
		}
		out = append(out, f)
	}

	return out, nil
}

// parseAcqTimes returns nil entries for null cells.
func parseAcqTimes(f tsv.Frame) ([]*time.Time, error) {
	cells, err := f.Strings(AcqTimeColumn)
	if err != nil {
		return nil, err
	}

	out := make([]*time.Time, len(cells))
	for i, cell := range cells {
		cell = strings.TrimSpace(cell)
		if events.IsNull(cell) {
			continue
		}

		t, err := dateparse.ParseIn(cell, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad %s %q: %w", i+1, AcqTimeColumn, cell, err)
		}
		out[i] = &t
	}

	return out, nil
}

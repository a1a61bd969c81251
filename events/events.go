// Package events reads, writes and summarizes BIDS task event tables
// (_events.tsv) as typed records.
package events

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/guregu/null.v3"
)

// Required columns of an events table, in output order.
var Required = []string{"onset", "duration", "trial_type", "response_time"}

// Event is one row of an events table. Onset and Duration are in seconds from
// the start of the run. A response time that is not Valid means that no
// response was recorded for the trial.
type Event struct {
	Onset        float64
	Duration     float64
	TrialType    string
	ResponseTime null.Float

	// Extra holds the values of any non-required columns, keyed by column
	// name.
	Extra map[string]string
}

// Table is the ordered list of events for one functional run. Events may
// overlap in time.
type Table struct {
	Events []Event

	// ExtraColumns lists non-required columns in their input order. Only
	// these columns are written back out.
	ExtraColumns []string
}

// Len returns the number of events in t.
func (t Table) Len() int {
	return len(t.Events)
}

// Clone returns a deep copy of t.
func (t Table) Clone() Table {
	out := Table{
		Events:       make([]Event, len(t.Events)),
		ExtraColumns: append([]string(nil), t.ExtraColumns...),
	}

	for i, v := range t.Events {
		out.Events[i] = v.Clone()
	}

	return out
}

// Clone returns a copy of e that shares no memory with it.
func (e Event) Clone() Event {
	out := e
	if e.Extra != nil {
		out.Extra = make(map[string]string, len(e.Extra))
		for k, v := range e.Extra {
			out.Extra[k] = v
		}
	}

	return out
}

// SortByOnset stably sorts the events by ascending onset.
func (t Table) SortByOnset() {
	sort.SliceStable(t.Events, func(i, j int) bool {
		return t.Events[i].Onset < t.Events[j].Onset
	})
}

// TrialTypes returns the distinct trial types in t, sorted.
func (t Table) TrialTypes() []string {
	seen := make(map[string]struct{})
	for _, v := range t.Events {
		seen[v.TrialType] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)

	return out
}

// ShiftOnsets returns a copy of t with delta seconds subtracted from every
// onset. Events that would start before zero are dropped. This is how
// removed non-steady-state volumes are accounted for.
func (t Table) ShiftOnsets(delta float64) Table {
	out := Table{
		Events:       make([]Event, 0, len(t.Events)),
		ExtraColumns: append([]string(nil), t.ExtraColumns...),
	}

	for _, v := range t.Events {
		shifted := v.Clone()
		shifted.Onset -= delta
		if shifted.Onset < 0 {
			continue
		}
		out.Events = append(out.Events, shifted)
	}

	return out
}

// MissingColumnsError is returned when an events table lacks one or more
// required columns.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("events table is missing required column(s): %s", strings.Join(e.Columns, ", "))
}

// ParseError reports a value that could not be interpreted. Row is 1-based
// and counts data rows only.
type ParseError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d, column %s: cannot parse %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

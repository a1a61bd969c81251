package bids

import (
	"encoding/csv"
	"io"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

// WritePairs writes a tab-separated subject/session table, as consumed by
// array jobs that process one session each.
func WritePairs(w io.Writer, pairs []Pair) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	rows := make([]*Pair, 0, len(pairs))
	for i := range pairs {
		rows = append(rows, &pairs[i])
	}

	if err := gocsv.MarshalCSV(&rows, gocsv.NewSafeCSVWriter(cw)); err != nil {
		return pfx.Err(err)
	}

	cw.Flush()

	return cw.Error()
}

// ReadPairs parses a table written by WritePairs.
func ReadPairs(r io.Reader) ([]Pair, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'

	rows := []*Pair{}
	if err := gocsv.UnmarshalCSV(cr, &rows); err != nil {
		return nil, pfx.Err(err)
	}

	out := make([]Pair, 0, len(rows))
	for _, v := range rows {
		out = append(out, Pair{Subject: SubjectLabel(v.Subject), Session: SessionLabel(v.Session)})
	}

	return out, nil
}

package events

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/carbocation/pfx"
	"gopkg.in/guregu/null.v3"
)

// Write emits t as a tab-separated table: the Required columns followed by
// t.ExtraColumns. Absent values are written as NullValue.
func Write(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	header := append(append([]string(nil), Required...), t.ExtraColumns...)
	if err := cw.Write(header); err != nil {
		return pfx.Err(err)
	}

	row := make([]string, len(header))
	for _, v := range t.Events {
		row[0] = FormatFloat(v.Onset)
		row[1] = FormatFloat(v.Duration)
		row[2] = v.TrialType
		row[3] = FormatNullFloat(v.ResponseTime)

		for i, col := range t.ExtraColumns {
			val, exists := v.Extra[col]
			if !exists || val == "" {
				val = NullValue
			}
			row[len(Required)+i] = val
		}

		if err := cw.Write(row); err != nil {
			return pfx.Err(err)
		}
	}

	cw.Flush()

	return cw.Error()
}

// WriteFile writes t to path, replacing any existing file.
func WriteFile(path string, t Table) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}

	fw := bufio.NewWriter(f)
	if err := Write(fw, t); err != nil {
		f.Close()
		return err
	}

	if err := fw.Flush(); err != nil {
		f.Close()
		return pfx.Err(err)
	}

	return f.Close()
}

// FormatFloat renders v with the fewest digits that round-trip.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatNullFloat renders v like FormatFloat, or as NullValue when absent.
func FormatNullFloat(v null.Float) string {
	if !v.Valid {
		return NullValue
	}

	return FormatFloat(v.Float64)
}

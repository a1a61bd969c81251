package events

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/fracback"
	"github.com/carbocation/pfx"
	"gopkg.in/guregu/null.v3"
)

// NullValue is written for absent values. IsNull accepts it along with the
// other spellings found in the wild.
const NullValue = "n/a"

var errNegative = errors.New("value must not be negative")

// IsNull reports whether s is one of the sentinels used for missing values.
func IsNull(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "n/a", "na", "nan", "none":
		return true
	}

	return false
}

// ReadFile reads an events table from a local, home-relative or gs:// path.
// Compressed files are decompressed transparently.
func ReadFile(path string, client *storage.Client) (Table, error) {
	data, err := fracback.ReadAll(path, client)
	if err != nil {
		return Table{}, pfx.Err(err)
	}

	t, err := Read(bytes.NewReader(data))
	if err != nil {
		return Table{}, fmt.Errorf("%s: %w", path, err)
	}

	return t, nil
}

// Read parses a tab-separated events table with a header row. The four
// Required columns must all be present; any others are kept as Extra
// values.
func Read(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	entries, err := cr.ReadAll()
	if err != nil {
		return Table{}, pfx.Err(err)
	}

	if len(entries) == 0 {
		return Table{}, &MissingColumnsError{Columns: append([]string(nil), Required...)}
	}

	header := make(map[string]int)
	columns := make([]string, 0, len(entries[0]))
	for i, name := range entries[0] {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, exists := header[name]; exists {
			return Table{}, fmt.Errorf("events table has duplicate column %q", name)
		}
		header[name] = i
		columns = append(columns, name)
	}

	var missing []string
	for _, name := range Required {
		if _, exists := header[name]; !exists {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Table{}, &MissingColumnsError{Columns: missing}
	}

	out := Table{Events: make([]Event, 0, len(entries)-1)}
	for _, name := range columns {
		if !isRequired(name) {
			out.ExtraColumns = append(out.ExtraColumns, name)
		}
	}

	for i, row := range entries[1:] {
		get := func(col string) string {
			idx := header[col]
			if idx >= len(row) {
				return ""
			}
			return row[idx]
		}

		ev := Event{TrialType: strings.TrimSpace(get("trial_type"))}

		if ev.Onset, err = parseTime(i+1, "onset", get("onset")); err != nil {
			return Table{}, err
		}
		if ev.Duration, err = parseTime(i+1, "duration", get("duration")); err != nil {
			return Table{}, err
		}
		if ev.ResponseTime, err = parseOptional(i+1, "response_time", get("response_time")); err != nil {
			return Table{}, err
		}

		if len(out.ExtraColumns) > 0 {
			ev.Extra = make(map[string]string, len(out.ExtraColumns))
			for _, col := range out.ExtraColumns {
				ev.Extra[col] = get(col)
			}
		}

		out.Events = append(out.Events, ev)
	}

	return out, nil
}

func isRequired(name string) bool {
	for _, v := range Required {
		if v == name {
			return true
		}
	}

	return false
}

// parseTime parses a mandatory non-negative number of seconds.
func parseTime(row int, column, value string) (float64, error) {
	value = strings.TrimSpace(value)

	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, &ParseError{Row: row, Column: column, Value: value, Err: err}
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ParseError{Row: row, Column: column, Value: value, Err: fmt.Errorf("value must be finite")}
	}

	if v < 0 {
		return 0, &ParseError{Row: row, Column: column, Value: value, Err: errNegative}
	}

	return v, nil
}

// parseOptional parses a non-negative number of seconds that may be absent.
// NaN is treated as absent.
func parseOptional(row int, column, value string) (null.Float, error) {
	if IsNull(value) {
		return null.Float{}, nil
	}

	value = strings.TrimSpace(value)

	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return null.Float{}, &ParseError{Row: row, Column: column, Value: value, Err: err}
	}

	if math.IsNaN(v) {
		return null.Float{}, nil
	}

	if math.IsInf(v, 0) {
		return null.Float{}, &ParseError{Row: row, Column: column, Value: value, Err: fmt.Errorf("value must be finite")}
	}

	if v < 0 {
		return null.Float{}, &ParseError{Row: row, Column: column, Value: value, Err: errNegative}
	}

	return null.FloatFrom(v), nil
}

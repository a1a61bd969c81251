// Package tsv holds loosely typed, named-column tables such as fMRIPrep
// confounds, tedana mixing matrices and BIDS scans files.
package tsv

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/fracback"
	"github.com/carbocation/pfx"
	"gonum.org/v1/gonum/mat"
)

// NullValue is written for NaN cells.
const NullValue = "n/a"

// Frame is a table of string cells with a header. Every row has exactly
// len(Columns) cells.
type Frame struct {
	Columns []string
	Rows    [][]string
}

// MissingColumnsError names every requested column that a frame lacks.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing column(s): %s", strings.Join(e.Columns, ", "))
}

// Read parses a delimited table with a header row. The delimiter is
// sniffed, defaulting to tab.
func Read(r io.Reader) (Frame, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Frame{}, pfx.Err(err)
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = fracback.DetermineDelimiterBytes(data)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	entries, err := cr.ReadAll()
	if err != nil {
		return Frame{}, pfx.Err(err)
	}

	if len(entries) == 0 {
		return Frame{}, nil
	}

	out := Frame{Columns: make([]string, len(entries[0]))}
	for i, v := range entries[0] {
		out.Columns[i] = strings.TrimSpace(strings.TrimPrefix(v, "\ufeff"))
	}

	out.Rows = make([][]string, 0, len(entries)-1)
	for i, row := range entries[1:] {
		if len(row) > len(out.Columns) {
			return Frame{}, fmt.Errorf("row %d has %d cells but the header has %d", i+1, len(row), len(out.Columns))
		}
		for len(row) < len(out.Columns) {
			row = append(row, "")
		}
		out.Rows = append(out.Rows, row)
	}

	return out, nil
}

// ReadFile reads a table from a local, home-relative or gs:// path.
func ReadFile(path string, client *storage.Client) (Frame, error) {
	rc, err := fracback.Open(path, client)
	if err != nil {
		return Frame{}, err
	}
	defer rc.Close()

	f, err := Read(rc)
	if err != nil {
		return Frame{}, fmt.Errorf("%s: %w", path, err)
	}

	return f, nil
}

// Write emits f as a tab-separated table.
func (f Frame) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := cw.Write(f.Columns); err != nil {
		return pfx.Err(err)
	}
	if err := cw.WriteAll(f.Rows); err != nil {
		return pfx.Err(err)
	}

	return cw.Error()
}

// WriteFile writes f to path, replacing any existing file.
func (f Frame) WriteFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}

	fw := bufio.NewWriter(file)
	if err := f.Write(fw); err != nil {
		file.Close()
		return err
	}
	if err := fw.Flush(); err != nil {
		file.Close()
		return pfx.Err(err)
	}

	return file.Close()
}

func (f Frame) Len() int {
	return len(f.Rows)
}

// Index returns the position of col in the header.
func (f Frame) Index(col string) (int, bool) {
	for i, v := range f.Columns {
		if v == col {
			return i, true
		}
	}

	return -1, false
}

func (f Frame) Has(col string) bool {
	_, ok := f.Index(col)
	return ok
}

func (f Frame) require(cols ...string) ([]int, error) {
	idx := make([]int, len(cols))

	var missing []string
	for i, col := range cols {
		j, ok := f.Index(col)
		if !ok {
			missing = append(missing, col)
			continue
		}
		idx[i] = j
	}

	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	return idx, nil
}

// Strings returns the raw cells of col.
func (f Frame) Strings(col string) ([]string, error) {
	idx, err := f.require(col)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(f.Rows))
	for i, row := range f.Rows {
		out[i] = row[idx[0]]
	}

	return out, nil
}

// Float64s parses col as numbers. Null sentinels become NaN. Boolean cells
// (True/False) become 1 and 0.
func (f Frame) Float64s(col string) ([]float64, error) {
	cells, err := f.Strings(col)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(cells))
	for i, v := range cells {
		if out[i], err = ParseFloat(v); err != nil {
			return nil, fmt.Errorf("column %s, row %d: %w", col, i+1, err)
		}
	}

	return out, nil
}

// ParseFloat parses a single cell.
func ParseFloat(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)

	switch strings.ToLower(cell) {
	case "", "n/a", "na", "nan", "none":
		return math.NaN(), nil
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}

	return strconv.ParseFloat(cell, 64)
}

// FormatFloat renders a cell, writing NaN as NullValue.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return NullValue
	}

	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Select returns a frame with only cols, in that order.
func (f Frame) Select(cols ...string) (Frame, error) {
	idx, err := f.require(cols...)
	if err != nil {
		return Frame{}, err
	}

	out := Frame{
		Columns: append([]string(nil), cols...),
		Rows:    make([][]string, len(f.Rows)),
	}
	for i, row := range f.Rows {
		sel := make([]string, len(idx))
		for j, k := range idx {
			sel[j] = row[k]
		}
		out.Rows[i] = sel
	}

	return out, nil
}

// ColumnsWithPrefix lists header names starting with prefix, in order.
func (f Frame) ColumnsWithPrefix(prefix string) []string {
	var out []string
	for _, v := range f.Columns {
		if strings.HasPrefix(v, prefix) {
			out = append(out, v)
		}
	}

	return out
}

// Clone returns a deep copy of f.
func (f Frame) Clone() Frame {
	out := Frame{
		Columns: append([]string(nil), f.Columns...),
		Rows:    make([][]string, len(f.Rows)),
	}
	for i, row := range f.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}

	return out
}

// Tail drops the first n rows.
func (f Frame) Tail(n int) Frame {
	if n <= 0 {
		return f
	}
	if n > len(f.Rows) {
		n = len(f.Rows)
	}

	return Frame{
		Columns: append([]string(nil), f.Columns...),
		Rows:    f.Rows[n:],
	}
}

// Set replaces col, or appends it when absent. len(values) must equal
// f.Len().
func (f *Frame) Set(col string, values []string) error {
	if len(values) != len(f.Rows) {
		return fmt.Errorf("column %s has %d values but the table has %d rows", col, len(values), len(f.Rows))
	}

	idx, ok := f.Index(col)
	if !ok {
		f.Columns = append(f.Columns, col)
		for i := range f.Rows {
			f.Rows[i] = append(f.Rows[i], values[i])
		}
		return nil
	}

	for i := range f.Rows {
		f.Rows[i][idx] = values[i]
	}

	return nil
}

// Matrix parses cols into a rows × len(cols) matrix.
func (f Frame) Matrix(cols ...string) (*mat.Dense, error) {
	if len(cols) == 0 {
		cols = f.Columns
	}

	if len(f.Rows) == 0 || len(cols) == 0 {
		return nil, fmt.Errorf("cannot build a matrix from %d rows and %d columns", len(f.Rows), len(cols))
	}

	out := mat.NewDense(len(f.Rows), len(cols), nil)
	for j, col := range cols {
		vals, err := f.Float64s(col)
		if err != nil {
			return nil, err
		}
		out.SetCol(j, vals)
	}

	return out, nil
}

// FromMatrix builds a frame from a matrix and its column names.
func FromMatrix(cols []string, m mat.Matrix) (Frame, error) {
	r, c := m.Dims()
	if c != len(cols) {
		return Frame{}, fmt.Errorf("matrix has %d columns but %d names were given", c, len(cols))
	}

	out := Frame{
		Columns: append([]string(nil), cols...),
		Rows:    make([][]string, r),
	}
	for i := 0; i < r; i++ {
		row := make([]string, c)
		for j := 0; j < c; j++ {
			row[j] = FormatFloat(m.At(i, j))
		}
		out.Rows[i] = row
	}

	return out, nil
}

// HStack concatenates frames side by side. All frames must have the same
// number of rows and no column name may repeat.
func HStack(frames ...Frame) (Frame, error) {
	if len(frames) == 0 {
		return Frame{}, nil
	}

	n := frames[0].Len()
	seen := make(map[string]struct{})

	out := Frame{Rows: make([][]string, n)}
	for k, f := range frames {
		if f.Len() != n {
			return Frame{}, fmt.Errorf("frame %d has %d rows, expected %d", k, f.Len(), n)
		}
		for _, col := range f.Columns {
			if _, exists := seen[col]; exists {
				return Frame{}, fmt.Errorf("column %s appears more than once", col)
			}
			seen[col] = struct{}{}
		}
		out.Columns = append(out.Columns, f.Columns...)
	}

	for i := 0; i < n; i++ {
		row := make([]string, 0, len(out.Columns))
		for _, f := range frames {
			row = append(row, f.Rows[i]...)
		}
		out.Rows[i] = row
	}

	return out, nil
}

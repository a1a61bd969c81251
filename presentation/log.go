// Package presentation converts Neurobehavioral Systems Presentation log
// files from the fractal n-back task into BIDS events tables.
package presentation

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/carbocation/fracback/bids"
	"github.com/carbocation/fracback/tsv"
	"github.com/carbocation/pfx"
	"golang.org/x/net/html/charset"
)

// Column names of the Presentation event block.
const (
	ColumnEventType = "Event Type"
	ColumnCode      = "Code"
	ColumnTime      = "Time"

	// Presentation times are in units of 0.1 ms.
	TimeUnitsPerSecond = 10000.0
)

// ParseLog extracts the event block of a Presentation log: the
// tab-separated table that starts at the line beginning with "Subject" and
// ends before the first line that is exactly "{". Empty lines are dropped
// and short rows are padded with empty cells. Logs saved as UTF-16 (with a
// byte order mark) or Windows-1252 are decoded to UTF-8 first.
func ParseLog(r io.Reader) (tsv.Frame, error) {
	decoded, err := charset.NewReader(r, "text/plain")
	if err != nil {
		return tsv.Frame{}, pfx.Err(err)
	}

	scanner := bufio.NewScanner(decoded)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var out tsv.Frame
	inBlock := false
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		if !inBlock {
			if strings.HasPrefix(line, "Subject") {
				inBlock = true
				out.Columns = strings.Split(line, "\t")
			}
			continue
		}

		if line == "{" {
			break
		}
		if line == "" {
			continue
		}

		row := strings.Split(line, "\t")
		if len(row) > len(out.Columns) {
			row = row[:len(out.Columns)]
		}
		for len(row) < len(out.Columns) {
			row = append(row, "")
		}
		out.Rows = append(out.Rows, row)
	}
	if err := scanner.Err(); err != nil {
		return tsv.Frame{}, pfx.Err(err)
	}

	if !inBlock {
		return tsv.Frame{}, fmt.Errorf("no line starting with Subject found")
	}

	return out, nil
}

// SubjectSessionFromLog derives the subject and session from a log file
// named like 01_2-fracback.log. idMap, when non-nil, maps the raw subject
// code onto a BIDS subject label and must contain it.
func SubjectSessionFromLog(filename string, idMap map[string]string) (bids.Pair, error) {
	prefix := strings.SplitN(filepath.Base(filename), "-", 2)[0]

	parts := strings.Split(prefix, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return bids.Pair{}, fmt.Errorf("%s: expected a name like <subject>_<session>-...", filename)
	}

	subject := bids.SubjectLabel(parts[0])
	if idMap != nil {
		mapped, ok := idMap[parts[0]]
		if !ok {
			return bids.Pair{}, fmt.Errorf("%s: subject %s_%s does not match anything", filename, parts[0], parts[1])
		}
		subject = bids.SubjectLabel(mapped)
	}

	return bids.Pair{Subject: subject, Session: bids.SessionLabel(parts[1])}, nil
}

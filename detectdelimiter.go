package fracback

import (
	"bytes"
	"io"
	"strings"

	"github.com/csimplestring/go-csv/detector"
)

// DetermineDelimiter returns the single most likely rune that would delimit
// the values in the reader. Only conventional delimiters are considered, and
// tab is returned when detection is inconclusive since BIDS tables are
// tab-separated.
func DetermineDelimiter(r io.Reader) rune {
	d := detector.New()
	delimiters := d.DetectDelimiter(r, '"')

	for _, v := range delimiters {
		if len(v) == 1 && strings.ContainsAny(v, "\t,;| ") {
			return rune(v[0])
		}
	}

	return '\t'
}

// DetermineDelimiterBytes is DetermineDelimiter over a buffer that is not
// consumed. A header containing a tab settles the question; otherwise the
// detector is consulted when there are enough lines to count on.
func DetermineDelimiterBytes(data []byte) rune {
	header := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		header = data[:i]
	}

	if bytes.IndexByte(header, '\t') >= 0 {
		return '\t'
	}

	if bytes.Count(data, []byte{'\n'}) >= 2 {
		return DetermineDelimiter(bytes.NewReader(data))
	}

	if bytes.IndexByte(header, ',') >= 0 {
		return ','
	}

	return '\t'
}

package bids

import (
	"encoding/csv"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/carbocation/fracback"
	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

// IDMapping is one row of a subject ID map: the identifier used at
// acquisition and the one it is published under.
type IDMapping struct {
	Original string `csv:"original_id"`
	BIDS     string `csv:"bids_id"`
}

// ReadIDMap parses a tab-separated table with original_id and bids_id
// columns. Every original ID must appear once.
func ReadIDMap(r io.Reader) (map[string]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'

	rows := []*IDMapping{}
	if err := gocsv.UnmarshalCSV(cr, &rows); err != nil {
		return nil, pfx.Err(err)
	}

	out := make(map[string]string, len(rows))
	for i, v := range rows {
		if v.Original == "" || v.BIDS == "" {
			return nil, fmt.Errorf("ID map row %d is incomplete", i+1)
		}
		if _, exists := out[v.Original]; exists {
			return nil, fmt.Errorf("ID map lists %s more than once", v.Original)
		}
		out[v.Original] = v.BIDS
	}

	return out, nil
}

// ReadIDMapFile reads an ID map from a local or gs:// path.
func ReadIDMapFile(path string, client *storage.Client) (map[string]string, error) {
	f, err := fracback.Open(path, client)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	return ReadIDMap(f)
}

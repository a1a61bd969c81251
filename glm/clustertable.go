package glm

import (
	"encoding/csv"
	"io"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

// ClusterRow is one line of a cluster table. Peak coordinates are voxel
// indices.
type ClusterRow struct {
	ClusterID int     `csv:"cluster_id"`
	Size      int     `csv:"size"`
	PeakStat  float64 `csv:"peak_stat"`
	X         int     `csv:"x"`
	Y         int     `csv:"y"`
	Z         int     `csv:"z"`
}

// ClusterRows numbers clusters from 1 in the order given and locates their
// peaks in a volume of the given dimensions.
func ClusterRows(clusters []Cluster, dims [3]int) []ClusterRow {
	out := make([]ClusterRow, 0, len(clusters))
	for i, c := range clusters {
		out = append(out, ClusterRow{
			ClusterID: i + 1,
			Size:      c.Size,
			PeakStat:  c.Peak,
			X:         c.PeakVoxel % dims[0],
			Y:         (c.PeakVoxel / dims[0]) % dims[1],
			Z:         c.PeakVoxel / (dims[0] * dims[1]),
		})
	}

	return out
}

// WriteClusterTable writes rows as a tab-separated table.
func WriteClusterTable(w io.Writer, rows []ClusterRow) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := gocsv.MarshalCSV(&rows, gocsv.NewSafeCSVWriter(cw)); err != nil {
		return pfx.Err(err)
	}

	cw.Flush()

	return cw.Error()
}

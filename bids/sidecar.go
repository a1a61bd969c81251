package bids

import (
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/fracback"
	"github.com/carbocation/pfx"
)

// Sidecar holds the JSON metadata fields used by the analysis. Times are in
// seconds.
type Sidecar struct {
	RepetitionTime float64 `json:"RepetitionTime"`
	StartTime      float64 `json:"StartTime"`
	EchoTime       float64 `json:"EchoTime"`
}

// SidecarPath returns the JSON sidecar path of a NIfTI file.
func SidecarPath(niftiPath string) string {
	switch {
	case strings.HasSuffix(niftiPath, ".nii.gz"):
		return strings.TrimSuffix(niftiPath, ".nii.gz") + ".json"
	case strings.HasSuffix(niftiPath, ".nii"):
		return strings.TrimSuffix(niftiPath, ".nii") + ".json"
	}

	return niftiPath + ".json"
}

// ReadSidecar parses the JSON sidecar at path.
func ReadSidecar(path string, client *storage.Client) (Sidecar, error) {
	data, err := fracback.ReadAll(path, client)
	if err != nil {
		return Sidecar{}, pfx.Err(err)
	}

	var out Sidecar
	if err := json.Unmarshal(data, &out); err != nil {
		return Sidecar{}, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	return out, nil
}

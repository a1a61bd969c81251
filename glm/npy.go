package glm

import (
	"fmt"

	"github.com/carbocation/fracback"
	"github.com/carbocation/pfx"
	"github.com/kshedden/gonpy"
)

// WriteNpy writes data as a float64 NumPy array of the given shape.
func WriteNpy(path string, data []float64, shape []int) error {
	size := 1
	for _, v := range shape {
		size *= v
	}
	if size != len(data) {
		return fmt.Errorf("shape %v holds %d values, got %d", shape, size, len(data))
	}

	path, err := fracback.ExpandHome(path)
	if err != nil {
		return pfx.Err(err)
	}

	w, err := gonpy.NewFileWriter(path)
	if err != nil {
		return pfx.Err(err)
	}
	w.Shape = shape
	w.Version = 2

	if err := w.WriteFloat64(data); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// ReadNpy reads a float64 NumPy array and its shape.
func ReadNpy(path string) ([]float64, []int, error) {
	path, err := fracback.ExpandHome(path)
	if err != nil {
		return nil, nil, pfx.Err(err)
	}

	r, err := gonpy.NewFileReader(path)
	if err != nil {
		return nil, nil, pfx.Err(err)
	}

	data, err := r.GetFloat64()
	if err != nil {
		return nil, nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	return data, r.Shape, nil
}

// Package volume loads 3-D and 4-D NIfTI images into flat float64 arrays
// and extracts voxel time series for model fitting.
package volume

import (
	"fmt"
	"sort"

	"github.com/carbocation/fracback"
	"github.com/carbocation/pfx"
	"github.com/henghuang/nifti"
	"gonum.org/v1/gonum/mat"
)

// Header is the geometry of an image.
type Header struct {
	Dims [4]int

	// Voxel sizes in mm
	Voxel [3]float64

	// Repetition time in seconds, 0 for 3-D images
	TR float64
}

func (h Header) NumVoxels() int {
	return h.Dims[0] * h.Dims[1] * h.Dims[2]
}

func (h Header) NumVolumes() int {
	if h.Dims[3] < 1 {
		return 1
	}
	return h.Dims[3]
}

// Image is a NIfTI image held in memory with x varying fastest, then y, z
// and t. Values are stored at single precision, as scanners write them.
type Image struct {
	Header
	data []float32
}

// NewImage copies data, laid out as described on Image, into an image.
func NewImage(h Header, data []float64) (*Image, error) {
	if h.Dims[3] < 1 {
		h.Dims[3] = 1
	}
	if expected := h.NumVoxels() * h.Dims[3]; len(data) != expected {
		return nil, fmt.Errorf("image of dimensions %v needs %d values, got %d", h.Dims, expected, len(data))
	}

	out := &Image{Header: h, data: make([]float32, len(data))}
	for i, v := range data {
		out.data[i] = float32(v)
	}

	return out, nil
}

// LoadHeader reads only the header of the NIfTI file at path.
func LoadHeader(path string) (Header, error) {
	path, err := fracback.ExpandHome(path)
	if err != nil {
		return Header{}, pfx.Err(err)
	}

	var hdr nifti.Nifti1Header
	if err := recoverNifti(path, func() { hdr.LoadHeader(path) }); err != nil {
		return Header{}, pfx.Err(err)
	}

	out := Header{}
	for i := 0; i < 4; i++ {
		out.Dims[i] = int(hdr.Dim[i+1])
	}
	if hdr.Dim[0] < 4 || out.Dims[3] < 1 {
		out.Dims[3] = 1
	}
	for i := 0; i < 3; i++ {
		out.Voxel[i] = float64(hdr.Pixdim[i+1])
	}
	if out.Dims[3] > 1 {
		out.TR = float64(hdr.Pixdim[4])
	}

	return out, nil
}

// Load reads the NIfTI file at path, which may be gzipped.
func Load(path string) (*Image, error) {
	h, err := LoadHeader(path)
	if err != nil {
		return nil, err
	}

	path, err = fracback.ExpandHome(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	var img nifti.Nifti1Image
	if err := recoverNifti(path, func() { img.LoadImage(path, true) }); err != nil {
		return nil, pfx.Err(err)
	}

	dims := img.GetDims()
	for i := 0; i < 3; i++ {
		if dims[i] != h.Dims[i] {
			return nil, fmt.Errorf("%s: header dimensions %v disagree with image dimensions %v", path, h.Dims, dims)
		}
	}

	out := &Image{Header: h, data: make([]float32, 0, h.NumVoxels()*h.Dims[3])}
	for t := 0; t < h.Dims[3]; t++ {
		for z := 0; z < h.Dims[2]; z++ {
			for y := 0; y < h.Dims[1]; y++ {
				for x := 0; x < h.Dims[0]; x++ {
					out.data = append(out.data, float32(img.GetAt(x, y, z, t)))
				}
			}
		}
	}

	return out, nil
}

// recoverNifti runs load, turning the panics the nifti library raises on
// unreadable files into errors.
func recoverNifti(path string, load func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %v", path, r)
		}
	}()

	load()

	return nil
}

// Index is the flat index of voxel (x, y, z) within one volume.
func (h Header) Index(x, y, z int) int {
	return x + h.Dims[0]*(y+h.Dims[1]*z)
}

// Coordinates inverts Index.
func (h Header) Coordinates(idx int) (x, y, z int) {
	x = idx % h.Dims[0]
	idx /= h.Dims[0]
	y = idx % h.Dims[1]
	z = idx / h.Dims[1]
	return
}

func (m *Image) At(x, y, z, t int) float64 {
	return float64(m.data[m.Index(x, y, z)+t*m.NumVoxels()])
}

// Volume returns a copy of the t-th 3-D volume.
func (m *Image) Volume(t int) []float64 {
	n := m.NumVoxels()
	out := make([]float64, n)
	for i, v := range m.data[t*n : (t+1)*n] {
		out[i] = float64(v)
	}
	return out
}

// Mask lists the voxels whose mean over time exceeds threshold.
func (m *Image) Mask(threshold float64) []int {
	n := m.NumVoxels()
	nt := m.NumVolumes()

	var out []int
	for v := 0; v < n; v++ {
		sum := 0.0
		for t := 0; t < nt; t++ {
			sum += float64(m.data[v+t*n])
		}
		if sum/float64(nt) > threshold {
			out = append(out, v)
		}
	}

	return out
}

// Series returns a time-by-voxel matrix of the masked voxels, dropping the
// first fromVolume volumes.
func (m *Image) Series(mask []int, fromVolume int) (*mat.Dense, error) {
	nt := m.NumVolumes() - fromVolume
	if fromVolume < 0 || nt < 1 {
		return nil, fmt.Errorf("cannot drop %d of %d volumes", fromVolume, m.NumVolumes())
	}
	if len(mask) == 0 {
		return nil, fmt.Errorf("empty mask")
	}

	n := m.NumVoxels()
	out := mat.NewDense(nt, len(mask), nil)
	for j, v := range mask {
		if v < 0 || v >= n {
			return nil, fmt.Errorf("mask voxel %d outside image of %d voxels", v, n)
		}
		for t := 0; t < nt; t++ {
			out.Set(t, j, float64(m.data[v+(t+fromVolume)*n]))
		}
	}

	return out, nil
}

// Scatter places values, one per mask voxel, into a full volume with zeros
// elsewhere.
func Scatter(values []float64, mask []int, h Header) ([]float64, error) {
	if len(values) != len(mask) {
		return nil, fmt.Errorf("%d values for %d mask voxels", len(values), len(mask))
	}

	out := make([]float64, h.NumVoxels())
	for i, v := range mask {
		if v < 0 || v >= len(out) {
			return nil, fmt.Errorf("mask voxel %d outside image of %d voxels", v, len(out))
		}
		out[v] = values[i]
	}

	return out, nil
}

// Intersect returns the voxels present in every mask, sorted.
func Intersect(masks ...[]int) []int {
	if len(masks) == 0 {
		return nil
	}

	counts := make(map[int]int)
	for _, mask := range masks {
		seen := make(map[int]struct{}, len(mask))
		for _, v := range mask {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			counts[v]++
		}
	}

	var out []int
	for _, v := range masks[0] {
		if counts[v] == len(masks) {
			out = append(out, v)
			counts[v] = 0
		}
	}
	sort.Ints(out)

	return out
}

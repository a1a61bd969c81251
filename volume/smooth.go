package volume

import (
	"fmt"
	"math"
)

// fwhmToSigma converts a full width at half maximum to a Gaussian sigma.
var fwhmToSigma = 1 / math.Sqrt(8*math.Log(2))

// Smooth applies an isotropic Gaussian kernel of the given full width at
// half maximum, in mm, to every volume. Each axis is filtered separately
// with the kernel truncated at 4 sigma and edges reflected.
func (m *Image) Smooth(fwhm float64) error {
	if fwhm <= 0 {
		return nil
	}

	var kernels [3][]float64
	for axis := 0; axis < 3; axis++ {
		size := m.Voxel[axis]
		if size <= 0 {
			return fmt.Errorf("voxel size along axis %d is %g", axis, size)
		}
		kernels[axis] = gaussianKernel(fwhm * fwhmToSigma / size)
	}

	n := m.NumVoxels()
	dims := m.Dims
	strides := [3]int{1, dims[0], dims[0] * dims[1]}

	for t := 0; t < m.NumVolumes(); t++ {
		vol := m.data[t*n : (t+1)*n]

		for axis := 0; axis < 3; axis++ {
			length := dims[axis]
			if length < 2 || len(kernels[axis]) < 2 {
				continue
			}

			line := make([]float64, length)
			out := make([]float64, length)

			// Visit each line along axis by iterating over the other two.
			a, b := (axis+1)%3, (axis+2)%3
			for i := 0; i < dims[a]; i++ {
				for j := 0; j < dims[b]; j++ {
					start := i*strides[a] + j*strides[b]
					for k := 0; k < length; k++ {
						line[k] = float64(vol[start+k*strides[axis]])
					}

					convolveReflect(line, kernels[axis], out)

					for k := 0; k < length; k++ {
						vol[start+k*strides[axis]] = float32(out[k])
					}
				}
			}
		}
	}

	return nil
}

// gaussianKernel returns a normalized kernel of odd length centered on the
// middle element.
func gaussianKernel(sigma float64) []float64 {
	if sigma <= 0 {
		return []float64{1}
	}

	radius := int(4*sigma + 0.5)
	out := make([]float64, 2*radius+1)
	sum := 0.0
	for i := -radius; i <= radius; i++ {
		v := math.Exp(-0.5 * float64(i*i) / (sigma * sigma))
		out[i+radius] = v
		sum += v
	}
	for i := range out {
		out[i] /= sum
	}

	return out
}

// convolveReflect filters in into out, extending in by mirroring about its
// edges (d c b a | a b c d | d c b a).
func convolveReflect(in, kernel, out []float64) {
	n := len(in)
	radius := len(kernel) / 2

	for i := range out {
		sum := 0.0
		for k, w := range kernel {
			sum += w * in[mirrorIndex(i+k-radius, n)]
		}
		out[i] = sum
	}
}

func mirrorIndex(i, n int) int {
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}

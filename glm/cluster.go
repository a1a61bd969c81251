package glm

import (
	"fmt"
	"math"
	"sort"

	"github.com/theodesp/unionfind"
	"gonum.org/v1/gonum/stat/distuv"
)

// Cluster is a 6-connected set of supra-threshold voxels of the same sign.
type Cluster struct {
	Size int

	// Peak is the most extreme statistic in the cluster, at PeakVoxel.
	Peak      float64
	PeakVoxel int
}

// ClusterThreshold zeroes every voxel of z that is not part of a cluster of
// at least minSize supra-threshold voxels. z is a full volume with x varying
// fastest. mask, when non-nil, restricts which voxels may be supra-threshold.
// When twoSided is set, negative clusters below -zThreshold are kept as well.
// Surviving clusters are returned largest first.
func ClusterThreshold(z []float64, dims [3]int, mask []int, zThreshold float64, minSize int, twoSided bool) ([]float64, []Cluster, error) {
	n := dims[0] * dims[1] * dims[2]
	if len(z) != n {
		return nil, nil, fmt.Errorf("map has %d voxels but dimensions %v hold %d", len(z), dims, n)
	}

	sign := make([]int8, n)
	allowed := func(int) bool { return true }
	if mask != nil {
		inMask := make([]bool, n)
		for _, v := range mask {
			if v < 0 || v >= n {
				return nil, nil, fmt.Errorf("mask voxel %d outside map of %d voxels", v, n)
			}
			inMask[v] = true
		}
		allowed = func(v int) bool { return inMask[v] }
	}

	for i, v := range z {
		if !allowed(i) || math.IsNaN(v) {
			continue
		}
		if v > zThreshold {
			sign[i] = 1
		} else if twoSided && v < -zThreshold {
			sign[i] = -1
		}
	}

	uf := unionfind.NewThreadSafeUnionFind(n)
	index := func(x, y, zz int) int { return x + dims[0]*(y+dims[1]*zz) }
	for zz := 0; zz < dims[2]; zz++ {
		for y := 0; y < dims[1]; y++ {
			for x := 0; x < dims[0]; x++ {
				i := index(x, y, zz)
				if sign[i] == 0 {
					continue
				}

				// Looking forward along each axis visits every edge once.
				if x+1 < dims[0] && sign[index(x+1, y, zz)] == sign[i] {
					uf.Union(i, index(x+1, y, zz))
				}
				if y+1 < dims[1] && sign[index(x, y+1, zz)] == sign[i] {
					uf.Union(i, index(x, y+1, zz))
				}
				if zz+1 < dims[2] && sign[index(x, y, zz+1)] == sign[i] {
					uf.Union(i, index(x, y, zz+1))
				}
			}
		}
	}

	members := make(map[int][]int)
	for i, s := range sign {
		if s == 0 {
			continue
		}
		root := uf.Root(i)
		if root < 0 {
			root = i
		}
		members[root] = append(members[root], i)
	}

	out := make([]float64, n)
	var clusters []Cluster
	for _, voxels := range members {
		if len(voxels) < minSize {
			continue
		}

		c := Cluster{Size: len(voxels), PeakVoxel: voxels[0], Peak: z[voxels[0]]}
		for _, v := range voxels {
			out[v] = z[v]
			if math.Abs(z[v]) > math.Abs(c.Peak) {
				c.Peak = z[v]
				c.PeakVoxel = v
			}
		}
		clusters = append(clusters, c)
	}

	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].Size != clusters[j].Size {
			return clusters[i].Size > clusters[j].Size
		}
		return clusters[i].PeakVoxel < clusters[j].PeakVoxel
	})

	return out, clusters, nil
}

// ZForP returns the z threshold with the given upper tail probability,
// halving it first when the test is two sided.
func ZForP(p float64, twoSided bool) float64 {
	if twoSided {
		p /= 2
	}
	return -distuv.UnitNormal.Quantile(p)
}

// secondlevel runs a one-sample group test on the first-level effect maps
// of one contrast, thresholds the group z map by cluster extent, and writes
// the group maps, a cluster table and a mosaic.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/carbocation/fracback"
	_ "github.com/carbocation/fracback/compileinfoprint"
	"github.com/carbocation/fracback/glm"
	"github.com/carbocation/fracback/plot"
	"github.com/carbocation/fracback/volume"
	"github.com/carbocation/pfx"
)

func main() {
	var (
		firstLevelDir, outDir, maskFile, bgFile string
		task, space, contrastLabel              string
		p                                       float64
		clusterSize                             int
		oneSided                                bool
	)

	flag.StringVar(&firstLevelDir, "first-level-dir", "", "Directory written by firstlevel.")
	flag.StringVar(&outDir, "out", "", "Output directory. Defaults to group-all under -first-level-dir.")
	flag.StringVar(&maskFile, "mask", "", "Group brain mask NIfTI in the same grid as the first-level maps.")
	flag.StringVar(&bgFile, "bg", "", "Optional NIfTI underlay for the mosaic.")
	flag.StringVar(&task, "task", "fracback", "Task label.")
	flag.StringVar(&space, "space", "MNI152NLin6Asym", "Space label of the first-level maps.")
	flag.StringVar(&contrastLabel, "contrast-label", "twoBackMinusZeroBack", "Contrast label of the first-level maps.")
	flag.Float64Var(&p, "p", 0.001, "Upper tail probability giving the voxel-level z threshold.")
	flag.IntVar(&clusterSize, "cluster-size", 10, "Minimum cluster size in voxels.")
	flag.BoolVar(&oneSided, "one-sided", false, "Keep only positive clusters.")
	flag.Parse()

	if firstLevelDir == "" || maskFile == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	for _, v := range []*string{&firstLevelDir, &outDir, &maskFile, &bgFile} {
		expanded, err := fracback.ExpandHome(*v)
		if err != nil {
			log.Fatalln(err)
		}
		*v = expanded
	}
	if outDir == "" {
		outDir = filepath.Join(firstLevelDir, "group-all")
	}

	pattern := fmt.Sprintf("sub-*_task-%s_*space-%s_contrast-%s_stat-effect_statmap.npy", task, space, contrastLabel)
	effectMaps, err := findEffectMaps(firstLevelDir, pattern)
	if err != nil {
		log.Fatalln(err)
	}
	if len(effectMaps) == 0 {
		log.Fatalf("No first-level maps found with pattern %s under %s\n", pattern, firstLevelDir)
	}

	log.Printf("Found %d first-level effect-size maps:\n", len(effectMaps))
	for _, v := range effectMaps {
		log.Println("\t", v)
	}

	maskImage, err := volume.Load(maskFile)
	if err != nil {
		log.Fatalln(err)
	}
	mask := maskImage.Mask(0.5)
	dims := [3]int{maskImage.Dims[0], maskImage.Dims[1], maskImage.Dims[2]}
	shape := []int{dims[2], dims[1], dims[0]}

	test := glm.NewOneSample(len(mask))
	inMask := make([]float64, len(mask))
	for _, path := range effectMaps {
		data, mapShape, err := glm.ReadNpy(path)
		if err != nil {
			log.Fatalln(err)
		}
		if !sameShape(mapShape, shape) {
			log.Fatalf("%s has shape %v but the mask has shape %v\n", path, mapShape, shape)
		}

		for i, v := range mask {
			inMask[i] = data[v]
		}
		if err := test.Push(inMask); err != nil {
			log.Fatalln(pfx.Err(err))
		}
	}

	est, err := test.Estimate()
	if err != nil {
		log.Fatalln(err)
	}
	log.Printf("One-sample test on %d maps, %d degrees of freedom\n", test.N(), est.DOF)

	if err := os.MkdirAll(outDir, 0755); err != nil {
		log.Fatalln(err)
	}

	h := maskImage.Header
	outPrefix := filepath.Join(outDir, fmt.Sprintf("task-%s_space-%s_contrast-%s", task, space, contrastLabel))

	stats := map[string][]float64{
		"effect":   est.Effect,
		"variance": est.Variance,
		"t":        est.T,
		"z":        est.Z,
	}
	full := make(map[string][]float64, len(stats))
	for _, stat := range []string{"effect", "variance", "t", "z"} {
		values, err := volume.Scatter(stats[stat], mask, h)
		if err != nil {
			log.Fatalln(err)
		}
		full[stat] = values

		if err := glm.WriteNpy(outPrefix+"_stat-"+stat+"_statmap.npy", values, shape); err != nil {
			log.Fatalln(err)
		}
	}

	zThreshold := glm.ZForP(p, false)
	thresholded, clusters, err := glm.ClusterThreshold(full["z"], dims, mask, zThreshold, clusterSize, !oneSided)
	if err != nil {
		log.Fatalln(err)
	}
	log.Printf("z > %.3f with clusters of at least %d voxels: %d clusters\n", zThreshold, clusterSize, len(clusters))

	if err := glm.WriteNpy(outPrefix+"_stat-z_desc-clusterThresholded_statmap.npy", thresholded, shape); err != nil {
		log.Fatalln(err)
	}

	if err := writeClusters(outPrefix+"_clusters.tsv", glm.ClusterRows(clusters, dims)); err != nil {
		log.Fatalln(err)
	}

	opts := plot.MosaicOptions{
		Threshold: zThreshold,
		Title:     fmt.Sprintf("%s %s, n=%d, z>%.2f, k>=%d", task, contrastLabel, test.N(), zThreshold, clusterSize),
	}
	if bgFile != "" {
		bg, err := volume.Load(bgFile)
		if err != nil {
			log.Fatalln(err)
		}
		if bg.NumVoxels() != h.NumVoxels() {
			log.Fatalf("background has %d voxels, the mask has %d\n", bg.NumVoxels(), h.NumVoxels())
		}
		opts.Background = bg.Volume(0)
	}

	img, err := plot.Mosaic(thresholded, dims, opts)
	if err != nil {
		log.Fatalln(err)
	}

	f, err := os.Create(outPrefix + "_stat-z_desc-clusterThresholded_statmap.png")
	if err != nil {
		log.Fatalln(err)
	}
	defer f.Close()
	if err := plot.WritePNG(f, img); err != nil {
		log.Fatalln(err)
	}

	log.Println("Saved second-level outputs to", outDir)
}

// findEffectMaps globs both the flat layout and the sub-*/ses-*/func layout
// written by firstlevel.
func findEffectMaps(root, pattern string) ([]string, error) {
	var out []string
	for _, dir := range []string{
		filepath.Join(root, "sub-*"),
		filepath.Join(root, "sub-*", "ses-*", "func"),
	} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, pfx.Err(err)
		}
		out = append(out, matches...)
	}
	sort.Strings(out)

	return out, nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func writeClusters(path string, rows []glm.ClusterRow) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	if err := glm.WriteClusterTable(f, rows); err != nil {
		return err
	}

	log.Printf("Wrote %d clusters to %s\n", len(rows), filepath.Base(path))

	return pfx.Err(f.Close())
}

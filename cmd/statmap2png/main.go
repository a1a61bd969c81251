// statmap2png renders a statistical map, either a .npy array written by
// firstlevel or secondlevel or one volume of a NIfTI file, as a mosaic of
// axial slices.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/carbocation/fracback"
	_ "github.com/carbocation/fracback/compileinfoprint"
	"github.com/carbocation/fracback/glm"
	"github.com/carbocation/fracback/plot"
	"github.com/carbocation/fracback/volume"
	"github.com/carbocation/pfx"
)

func main() {
	var filename, output, bgFile, title, canvas string
	var threshold, vmax float64
	var t, columns, scale int

	flag.StringVar(&filename, "file", "", "Name of the .npy, .nii or .nii.gz map to render.")
	flag.StringVar(&output, "out", "", "Name of the PNG to write. Defaults to {orig_filename}.png next to the input.")
	flag.StringVar(&bgFile, "bg", "", "Optional NIfTI underlay in the same grid.")
	flag.StringVar(&title, "title", "", "Title drawn above the mosaic. Defaults to the input filename.")
	flag.StringVar(&canvas, "canvas", "#000000", "Hex colour behind the slices.")
	flag.Float64Var(&threshold, "threshold", 0, "Values with magnitude at or below this are not drawn.")
	flag.Float64Var(&vmax, "vmax", 0, "Magnitude at which the colormap saturates. 0 uses the largest magnitude.")
	flag.IntVar(&t, "volume", 0, "Volume of a 4-D NIfTI file to render.")
	flag.IntVar(&columns, "columns", 0, "Tiles per row. 0 picks a near-square grid.")
	flag.IntVar(&scale, "scale", 3, "Magnification of each tile.")
	flag.Parse()

	if filename == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	filename, err := fracback.ExpandHome(filename)
	if err != nil {
		log.Fatalln(err)
	}

	prefix := filepath.Base(filename)
	for _, ext := range []string{".npy", ".nii.gz", ".nii"} {
		prefix = strings.TrimSuffix(prefix, ext)
	}
	if output == "" {
		output = filepath.Join(filepath.Dir(filename), prefix+".png")
	}
	if title == "" {
		title = prefix
	}

	values, dims, err := loadMap(filename, t)
	if err != nil {
		log.Fatalln(err)
	}

	opts := plot.MosaicOptions{
		Threshold: threshold,
		VMax:      vmax,
		Columns:   columns,
		Scale:     scale,
		Title:     title,
		Canvas:    canvas,
	}
	if bgFile != "" {
		bg, err := volume.Load(bgFile)
		if err != nil {
			log.Fatalln(err)
		}
		opts.Background = bg.Volume(0)
	}

	img, err := plot.Mosaic(values, dims, opts)
	if err != nil {
		log.Fatalln(err)
	}

	f, err := os.Create(output)
	if err != nil {
		log.Fatalln(err)
	}
	defer f.Close()

	if err := plot.WritePNG(f, img); err != nil {
		log.Fatalln(err)
	}

	// Emit metadata about the PNG
	fmt.Printf("%s\t%d\t%d\t%d\n", output, dims[0], dims[1], dims[2])
}

// loadMap returns one volume with x varying fastest, and its dimensions.
func loadMap(filename string, t int) ([]float64, [3]int, error) {
	if strings.HasSuffix(filename, ".npy") {
		data, shape, err := glm.ReadNpy(filename)
		if err != nil {
			return nil, [3]int{}, err
		}
		if len(shape) != 3 {
			return nil, [3]int{}, fmt.Errorf("%s has shape %v, expected (z, y, x)", filename, shape)
		}

		return data, [3]int{shape[2], shape[1], shape[0]}, nil
	}

	img, err := volume.Load(filename)
	if err != nil {
		return nil, [3]int{}, err
	}
	if t < 0 || t >= img.NumVolumes() {
		return nil, [3]int{}, pfx.Err(fmt.Errorf("volume %d requested but %s has %d", t, filename, img.NumVolumes()))
	}

	return img.Volume(t), [3]int{img.Dims[0], img.Dims[1], img.Dims[2]}, nil
}

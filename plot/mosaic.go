// Package plot renders statistical maps as tiled axial slices.
package plot

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"github.com/carbocation/pfx"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/icza/gox/imagex/colorx"
	"golang.org/x/image/font/basicfont"
)

// MosaicOptions controls Mosaic. Zero values give sensible defaults.
type MosaicOptions struct {
	// Values with magnitude at or below Threshold are transparent.
	Threshold float64

	// VMax saturates the colormap. If 0, the largest magnitude is used.
	VMax float64

	// Background, if set, is a volume of the same dimensions drawn in grey
	// beneath the map.
	Background []float64

	// Columns of tiles in the grid. If 0, about the square root of the
	// number of slices.
	Columns int

	// Scale is the integer magnification of each tile. If 0, 3.
	Scale int

	// Slices restricts the axial slices drawn. If nil, every slice with data
	// is drawn.
	Slices []int

	Title string

	// Canvas is the hex colour behind the tiles, such as "#000000" (the
	// default) or "#fff".
	Canvas string
}

// Mosaic draws the axial slices of a volume (x fastest, then y, then z) in a
// grid, with positive values in red to yellow and negative values in blue to
// cyan.
func Mosaic(values []float64, dims [3]int, opts MosaicOptions) (image.Image, error) {
	n := dims[0] * dims[1] * dims[2]
	if n == 0 || len(values) != n {
		return nil, fmt.Errorf("map has %d values but dimensions %v hold %d", len(values), dims, n)
	}
	if opts.Background != nil && len(opts.Background) != n {
		return nil, fmt.Errorf("background has %d values, expected %d", len(opts.Background), n)
	}

	if opts.Scale <= 0 {
		opts.Scale = 3
	}
	if opts.Canvas == "" {
		opts.Canvas = "#000000"
	}
	canvas, err := colorx.ParseHexColor(opts.Canvas)
	if err != nil {
		return nil, pfx.Err(err)
	}

	vmax := opts.VMax
	if vmax <= 0 {
		for _, v := range values {
			if a := math.Abs(v); a > vmax && !math.IsInf(a, 0) {
				vmax = a
			}
		}
	}
	if vmax <= 0 {
		vmax = 1
	}

	bgMax := 0.0
	for _, v := range opts.Background {
		if v > bgMax {
			bgMax = v
		}
	}

	slices := opts.Slices
	if slices == nil {
		slices = slicesWithData(values, opts.Background, dims)
	}
	if len(slices) == 0 {
		return nil, fmt.Errorf("no slices to draw")
	}

	cols := opts.Columns
	if cols <= 0 {
		cols = int(math.Ceil(math.Sqrt(float64(len(slices)))))
	}
	rows := (len(slices) + cols - 1) / cols

	tileW, tileH := dims[0]*opts.Scale, dims[1]*opts.Scale
	titleH := 0
	if opts.Title != "" {
		titleH = 20
	}

	ctx := gg.NewContext(cols*tileW, rows*tileH+titleH)
	ctx.SetColor(canvas)
	ctx.Clear()

	for i, z := range slices {
		if z < 0 || z >= dims[2] {
			return nil, fmt.Errorf("slice %d outside %d slices", z, dims[2])
		}

		tile := renderSlice(values, opts.Background, dims, z, opts.Threshold, vmax, bgMax)
		tile = imaging.Resize(tile, tileW, tileH, imaging.NearestNeighbor)

		ctx.DrawImage(tile, (i%cols)*tileW, (i/cols)*tileH+titleH)
	}

	if opts.Title != "" {
		ctx.SetFontFace(basicfont.Face7x13)
		if luminance(canvas) > 0.5 {
			ctx.SetRGB(0, 0, 0)
		} else {
			ctx.SetRGB(1, 1, 1)
		}
		ctx.DrawStringAnchored(opts.Title, float64(cols*tileW)/2, float64(titleH)/2, 0.5, 0.5)
	}

	return ctx.Image(), nil
}

// WritePNG encodes img as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	return pfx.Err(imaging.Encode(w, img, imaging.PNG))
}

func slicesWithData(values, background []float64, dims [3]int) []int {
	plane := dims[0] * dims[1]

	var out []int
	for z := 0; z < dims[2]; z++ {
		for i := z * plane; i < (z+1)*plane; i++ {
			if values[i] != 0 || (background != nil && background[i] > 0) {
				out = append(out, z)
				break
			}
		}
	}

	return out
}

// renderSlice draws slice z with anterior at the top.
func renderSlice(values, background []float64, dims [3]int, z int, threshold, vmax, bgMax float64) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, dims[0], dims[1]))

	for y := 0; y < dims[1]; y++ {
		for x := 0; x < dims[0]; x++ {
			i := x + dims[0]*(y+dims[1]*z)

			var c color.NRGBA
			if background != nil && bgMax > 0 {
				g := uint8(255 * clamp(background[i]/bgMax))
				c = color.NRGBA{g, g, g, 255}
			}

			if v := values[i]; !math.IsNaN(v) && math.Abs(v) > threshold {
				c = diverging(v / vmax)
			}

			img.SetNRGBA(x, dims[1]-1-y, c)
		}
	}

	return img
}

// diverging maps [-1, 1] onto cyan-blue-(transparent)-red-yellow.
func diverging(f float64) color.NRGBA {
	f = math.Max(-1, math.Min(1, f))

	if f >= 0 {
		// Red at 0 rising to yellow at 1.
		return color.NRGBA{255, uint8(255 * f), 0, 255}
	}

	return color.NRGBA{0, uint8(255 * -f), 255, 255}
}

func clamp(f float64) float64 {
	if f < 0 || math.IsNaN(f) {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func luminance(c color.RGBA) float64 {
	return (0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)) / 255
}

// Command edgepreview runs an edge detection strategy over a scanned map
// image and writes the result for inspection: the raw mask, a red overlay
// on the source scan, or the derived cost field.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"contour-tracer/internal/costfield"
	"contour-tracer/internal/edge"
	"contour-tracer/internal/raster"

	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/imgio"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

func main() {
	inPath := flag.String("in", "", "Path to the scanned map image (TIFF, PNG, JPEG or BMP)")
	outPath := flag.String("out", "preview.png", "Output image path")
	strategy := flag.String("strategy", "adaptive", "Detection strategy: adaptive, line-segment or dense-edge")
	block := flag.Int("block", 21, "Adaptive threshold block size (odd)")
	thin := flag.Bool("thin", false, "Thin detected edges to single-pixel width")
	mode := flag.String("mode", "overlay", "Output mode: mask, overlay or cost")
	adherence := flag.Float64("adherence", 0.3, "Edge adherence for cost mode (0-1)")
	proto := flag.String("proto", "", "Dense edge model definition file")
	weights := flag.String("weights", "", "Dense edge model weights file")
	flag.Parse()

	if *inPath == "" {
		fmt.Println("Usage: edgepreview -in <path> [-out preview.png] [-strategy adaptive|line-segment|dense-edge] [-mode mask|overlay|cost]")
		os.Exit(1)
	}

	img, err := imgio.Open(*inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open image: %v\n", err)
		os.Exit(1)
	}
	bounds := img.Bounds()
	fmt.Printf("Loaded image: %dx%d pixels\n", bounds.Dx(), bounds.Dy())

	opts := edge.DefaultOptions().
		WithStrategy(edge.ParseStrategy(*strategy)).
		WithBlockSize(*block).
		WithThinning(*thin).
		WithModelFiles(*proto, *weights)
	fmt.Printf("Strategy: %s (block %d, thinning %v)\n", opts.Strategy, opts.BlockSize, opts.Thin)

	det := edge.NewDetector(opts)
	defer det.Close()

	tile := raster.FromImage(img)
	mask := det.Detect(tile)
	fmt.Printf("Detected %d edge pixels (%.1f%% of the tile)\n",
		mask.Count(), 100*float64(mask.Count())/float64(tile.W*tile.H))

	var out image.Image
	switch *mode {
	case "mask":
		out = maskImage(mask)
	case "overlay":
		out = blend.Normal(img, maskOverlay(mask))
	case "cost":
		field := costfield.NewBuilder(costfield.DefaultOptions()).Build(mask, *adherence)
		out = costImage(field)
	default:
		fmt.Fprintf(os.Stderr, "Unknown mode %q\n", *mode)
		os.Exit(1)
	}

	if err := imgio.Save(*outPath, out, encoderFor(*outPath)); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to save %s: %v\n", *outPath, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *outPath)
}

// maskImage renders the mask white-on-black.
func maskImage(m *edge.Mask) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, m.W, m.H))
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			if m.At(x, y) {
				out.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return out
}

// maskOverlay renders the mask as translucent red for compositing over the
// source scan.
func maskOverlay(m *edge.Mask) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, m.W, m.H))
	red := color.NRGBA{R: 220, A: 160}
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			if m.At(x, y) {
				out.SetNRGBA(x, y, red)
			}
		}
	}
	return out
}

// costImage renders the field with cheap cells dark, normalized to the
// field's own cost range. A uniform field comes out flat black.
func costImage(f *costfield.Field) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, f.W, f.H))
	max := 1.0
	for _, c := range f.Cost {
		if c > max {
			max = c
		}
	}
	span := max - 1
	if span <= 0 {
		return out
	}
	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			v := (f.At(x, y) - 1) / span
			out.SetGray(x, y, color.Gray{Y: uint8(math.Round(255 * v))})
		}
	}
	return out
}

// encoderFor picks the output encoder from the file extension.
func encoderFor(path string) imgio.Encoder {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return imgio.JPEGEncoder(92)
	case ".bmp":
		return imgio.BMPEncoder()
	default:
		return imgio.PNGEncoder()
	}
}

package edge

import (
	"math"

	"contour-tracer/internal/raster"
)

// blurGray applies a separable Gaussian blur to an intensity grid and
// returns the result as floats. Borders use replicated edge values.
func blurGray(pix []uint8, w, h int, sigma float64) []float64 {
	if sigma <= 0 {
		sigma = 1
	}
	radius := int(math.Ceil(3 * sigma))
	if radius < 1 {
		radius = 1
	}

	kernel := make([]float64, 2*radius+1)
	var sum float64
	for i := range kernel {
		d := float64(i - radius)
		kernel[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}

	// Horizontal pass.
	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := y * w
		for x := 0; x < w; x++ {
			var acc float64
			for k := -radius; k <= radius; k++ {
				xx := clampInt(x+k, 0, w-1)
				acc += float64(pix[row+xx]) * kernel[k+radius]
			}
			tmp[row+x] = acc
		}
	}

	// Vertical pass.
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float64
			for k := -radius; k <= radius; k++ {
				yy := clampInt(y+k, 0, h-1)
				acc += tmp[yy*w+x] * kernel[k+radius]
			}
			out[y*w+x] = acc
		}
	}
	return out
}

// adaptiveThreshold marks cells darker than their Gaussian-weighted local
// mean by more than offset. Dark strokes on a bright background come out as
// foreground regardless of overall scan brightness.
func adaptiveThreshold(t *raster.Tile, block int, offset float64) *Mask {
	mask := NewMask(t.W, t.H)
	if t.Empty() {
		return mask
	}
	if block < 3 {
		block = 3
	}

	// Sigma matched to the block size the same way OpenCV derives it for
	// its Gaussian adaptive threshold.
	sigma := 0.3*(float64(block-1)*0.5-1) + 0.8
	mean := blurGray(t.Pix, t.W, t.H, sigma)

	for i, v := range t.Pix {
		if float64(v) < mean[i]-offset {
			mask.Pix[i] = 255
		}
	}
	return mask
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

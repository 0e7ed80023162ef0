package edge

import (
	"math"

	"contour-tracer/internal/raster"
)

// cannyEdges runs Canny-style gradient edge detection: Gaussian blur, Sobel
// gradients, non-maximum suppression, then hysteresis thresholding. The
// low/high thresholds apply to the Sobel gradient magnitude.
func cannyEdges(t *raster.Tile, low, high float64) *Mask {
	w, h := t.W, t.H
	mask := NewMask(w, h)
	if w < 3 || h < 3 {
		return mask
	}
	if high < low {
		low, high = high, low
	}

	blurred := blurGray(t.Pix, w, h, 1.4)

	// Sobel gradients.
	magnitude := make([]float64, w*h)
	direction := make([]float64, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y * w
			gx := -blurred[i-w+x-1] + blurred[i-w+x+1] +
				-2*blurred[i+x-1] + 2*blurred[i+x+1] +
				-blurred[i+w+x-1] + blurred[i+w+x+1]
			gy := -blurred[i-w+x-1] - 2*blurred[i-w+x] - blurred[i-w+x+1] +
				blurred[i+w+x-1] + 2*blurred[i+w+x] + blurred[i+w+x+1]
			magnitude[i+x] = math.Sqrt(gx*gx + gy*gy)
			direction[i+x] = math.Atan2(gy, gx)
		}
	}

	// Non-maximum suppression: keep only local maxima along the gradient
	// direction, quantized to four neighbor pairs.
	suppressed := make([]float64, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			mag := magnitude[i]
			if mag == 0 {
				continue
			}

			angle := direction[i]
			if angle < 0 {
				angle += math.Pi
			}

			var n1, n2 float64
			switch {
			case angle < math.Pi/8 || angle >= 7*math.Pi/8:
				n1, n2 = magnitude[i-1], magnitude[i+1]
			case angle < 3*math.Pi/8:
				n1, n2 = magnitude[i-w+1], magnitude[i+w-1]
			case angle < 5*math.Pi/8:
				n1, n2 = magnitude[i-w], magnitude[i+w]
			default:
				n1, n2 = magnitude[i-w-1], magnitude[i+w+1]
			}

			if mag >= n1 && mag >= n2 {
				suppressed[i] = mag
			}
		}
	}

	// Hysteresis: strong edges seed a flood into connected weak edges.
	const (
		weak   = 1
		strong = 2
	)
	labels := make([]uint8, w*h)
	var stack []int
	for i, mag := range suppressed {
		if mag >= high {
			labels[i] = strong
			stack = append(stack, i)
		} else if mag >= low {
			labels[i] = weak
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		mask.Pix[i] = 255

		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				j := ny*w + nx
				if labels[j] == weak {
					labels[j] = strong
					stack = append(stack, j)
				}
			}
		}
	}

	return mask
}

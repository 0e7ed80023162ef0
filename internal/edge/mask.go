package edge

import (
	"math"

	"contour-tracer/pkg/geometry"
)

// Mask is a binary edge grid. Cells are 0 (background) or 255 (edge).
type Mask struct {
	W, H int
	Pix  []uint8 // row-major, length W*H
}

// NewMask creates an empty mask of the given dimensions.
func NewMask(w, h int) *Mask {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Mask{W: w, H: h, Pix: make([]uint8, w*h)}
}

// At reports whether the cell at (x, y) is an edge. Out of bounds is false.
func (m *Mask) At(x, y int) bool {
	if x < 0 || x >= m.W || y < 0 || y >= m.H {
		return false
	}
	return m.Pix[y*m.W+x] != 0
}

// Set marks or clears the cell at (x, y). Out-of-bounds writes are ignored.
func (m *Mask) Set(x, y int, edge bool) {
	if x < 0 || x >= m.W || y < 0 || y >= m.H {
		return
	}
	if edge {
		m.Pix[y*m.W+x] = 255
	} else {
		m.Pix[y*m.W+x] = 0
	}
}

// Count returns the number of edge cells.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// Or merges another mask into this one in place. Masks of different
// dimensions are left untouched.
func (m *Mask) Or(other *Mask) {
	if other == nil || other.W != m.W || other.H != m.H {
		return
	}
	for i, v := range other.Pix {
		if v != 0 {
			m.Pix[i] = 255
		}
	}
}

// Clone returns a deep copy of the mask.
func (m *Mask) Clone() *Mask {
	out := NewMask(m.W, m.H)
	copy(out.Pix, m.Pix)
	return out
}

// closeGaps applies a morphological closing (dilate then erode) with a
// k x k box kernel, bridging small breaks in detected strokes.
func closeGaps(m *Mask, k int) *Mask {
	if k < 2 || m.W == 0 || m.H == 0 {
		return m
	}
	return erode(dilate(m, k), k)
}

func dilate(m *Mask, k int) *Mask {
	out := NewMask(m.W, m.H)
	lo := -(k - 1) / 2
	hi := k / 2
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			if !m.At(x, y) {
				continue
			}
			for dy := lo; dy <= hi; dy++ {
				for dx := lo; dx <= hi; dx++ {
					out.Set(x+dx, y+dy, true)
				}
			}
		}
	}
	return out
}

func erode(m *Mask, k int) *Mask {
	out := NewMask(m.W, m.H)
	lo := -(k - 1) / 2
	hi := k / 2
	for y := 0; y < m.H; y++ {
		for x := 0; x < m.W; x++ {
			keep := true
			for dy := lo; dy <= hi && keep; dy++ {
				for dx := lo; dx <= hi; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || nx >= m.W || ny < 0 || ny >= m.H || !m.At(nx, ny) {
						keep = false
						break
					}
				}
			}
			if keep {
				out.Set(x, y, true)
			}
		}
	}
	return out
}

// NearestEdge finds the edge cell closest to (x, y), scanning outward in
// square rings up to maxRadius. Returns false if none is found.
func (m *Mask) NearestEdge(x, y, maxRadius int) (geometry.PointInt, bool) {
	if m.At(x, y) {
		return geometry.PointInt{X: x, Y: y}, true
	}

	bestDist := math.Inf(1)
	var best geometry.PointInt
	found := false

	for r := 1; r <= maxRadius; r++ {
		for dx := -r; dx <= r; dx++ {
			for _, dy := range []int{-r, r} {
				if m.At(x+dx, y+dy) {
					d := math.Sqrt(float64(dx*dx + dy*dy))
					if d < bestDist {
						bestDist = d
						best = geometry.PointInt{X: x + dx, Y: y + dy}
						found = true
					}
				}
			}
		}
		for dy := -r + 1; dy <= r-1; dy++ {
			for _, dx := range []int{-r, r} {
				if m.At(x+dx, y+dy) {
					d := math.Sqrt(float64(dx*dx + dy*dy))
					if d < bestDist {
						bestDist = d
						best = geometry.PointInt{X: x + dx, Y: y + dy}
						found = true
					}
				}
			}
		}
		if found {
			return best, true
		}
	}
	return geometry.PointInt{}, false
}

// Package costfield turns binary edge masks into traversal cost grids.
// Cost is lowest directly on detected edges and grows with distance from
// them, so least-cost paths cling to the contour lines of the scan.
package costfield

import (
	"math"

	"contour-tracer/internal/edge"
)

// Field is a per-pixel traversal cost grid. Cost is exactly 1.0 on edge
// cells and rises with the Euclidean distance to the nearest edge.
type Field struct {
	W, H int
	Cost []float64 // row-major, length W*H
}

// NewUniform returns a field with cost 1.0 everywhere. Pathfinding over a
// uniform field degenerates to shortest Euclidean routes.
func NewUniform(w, h int) *Field {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	f := &Field{W: w, H: h, Cost: make([]float64, w*h)}
	for i := range f.Cost {
		f.Cost[i] = 1
	}
	return f
}

// At returns the traversal cost at (x, y). Out-of-bounds cells are
// impassable.
func (f *Field) At(x, y int) float64 {
	if x < 0 || x >= f.W || y < 0 || y >= f.H {
		return math.Inf(1)
	}
	return f.Cost[y*f.W+x]
}

// Options configures how quickly cost grows away from edges.
type Options struct {
	// BaseRate is the cost growth per pixel of distance at adherence 0.
	BaseRate float64
	// AdherenceSpan is the additional growth per pixel at adherence 1.
	AdherenceSpan float64
}

// DefaultOptions returns the growth rates tuned for contour following: at
// full adherence a detour pixel far from any edge costs ten times what it
// does at minimum adherence.
func DefaultOptions() Options {
	return Options{
		BaseRate:      0.1,
		AdherenceSpan: 0.9,
	}
}

// Builder constructs cost fields from edge masks.
type Builder struct {
	opts Options
}

// NewBuilder creates a builder. Non-positive rates fall back to defaults.
func NewBuilder(opts Options) *Builder {
	def := DefaultOptions()
	if opts.BaseRate <= 0 {
		opts.BaseRate = def.BaseRate
	}
	if opts.AdherenceSpan <= 0 {
		opts.AdherenceSpan = def.AdherenceSpan
	}
	return &Builder{opts: opts}
}

// Build computes the cost field for a mask at the given adherence setting.
// Adherence is clamped to [0, 1]. A mask with no edge cells produces a
// uniform field, which keeps tracing usable on featureless areas. The
// result is deterministic for identical inputs.
func (b *Builder) Build(mask *edge.Mask, adherence float64) *Field {
	if mask == nil || mask.W == 0 || mask.H == 0 {
		return NewUniform(0, 0)
	}
	field := NewUniform(mask.W, mask.H)
	if mask.Count() == 0 {
		return field
	}

	if adherence < 0 {
		adherence = 0
	}
	if adherence > 1 {
		adherence = 1
	}
	rate := b.opts.BaseRate + adherence*b.opts.AdherenceSpan

	dist := distanceTransform(mask)
	for i := range field.Cost {
		field.Cost[i] = 1 + math.Sqrt(dist[i])*rate
	}
	return field
}

// farAway stands in for infinity in the distance transform. A finite value
// keeps the parabola intersections well defined on rows with no edges.
const farAway = 1e20

// distanceTransform computes the exact squared Euclidean distance from every
// cell to the nearest edge cell, using the Felzenszwalb-Huttenlocher
// two-pass lower envelope of parabolas.
func distanceTransform(m *edge.Mask) []float64 {
	w, h := m.W, m.H
	grid := make([]float64, w*h)
	for i, v := range m.Pix {
		if v == 0 {
			grid[i] = farAway
		}
	}

	n := w
	if h > n {
		n = h
	}
	f := make([]float64, n)
	d := make([]float64, n)
	idx := make([]int, n)
	z := make([]float64, n+1)

	// Columns first, then rows over the column results.
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			f[y] = grid[y*w+x]
		}
		transform1D(f[:h], d[:h], idx[:h], z[:h+1])
		for y := 0; y < h; y++ {
			grid[y*w+x] = d[y]
		}
	}
	for y := 0; y < h; y++ {
		row := grid[y*w : (y+1)*w]
		copy(f[:w], row)
		transform1D(f[:w], d[:w], idx[:w], z[:w+1])
		copy(row, d[:w])
	}
	return grid
}

// transform1D computes the 1D squared distance transform of sampled
// function f into d. idx and z are scratch space for the envelope.
func transform1D(f, d []float64, idx []int, z []float64) {
	n := len(f)
	if n == 0 {
		return
	}

	k := 0
	idx[0] = 0
	z[0] = math.Inf(-1)
	z[1] = math.Inf(1)
	for q := 1; q < n; q++ {
		s := intersect(f, q, idx[k])
		for s <= z[k] {
			k--
			s = intersect(f, q, idx[k])
		}
		k++
		idx[k] = q
		z[k] = s
		z[k+1] = math.Inf(1)
	}

	k = 0
	for q := 0; q < n; q++ {
		for z[k+1] < float64(q) {
			k++
		}
		dq := float64(q - idx[k])
		d[q] = dq*dq + f[idx[k]]
	}
}

// intersect returns the horizontal position where the parabolas rooted at
// q and p cross.
func intersect(f []float64, q, p int) float64 {
	return (f[q] + float64(q*q) - f[p] - float64(p*p)) / float64(2*q-2*p)
}

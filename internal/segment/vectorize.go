package segment

import (
	"math"

	"contour-tracer/internal/edge"
	"contour-tracer/pkg/geometry"
)

// Options configures mask vectorization.
type Options struct {
	// MinArea is the smallest connected region worth tracing, in pixels.
	MinArea int
	// SimplifyEpsilon is the Douglas-Peucker tolerance applied to the
	// traced boundary.
	SimplifyEpsilon float64
}

// DefaultOptions returns vectorization parameters that ignore speckle
// regions and keep boundaries within two pixels of the mask.
func DefaultOptions() Options {
	return Options{
		MinArea:         16,
		SimplifyEpsilon: 2.0,
	}
}

// Vectorize traces the outer boundary of the largest connected region in
// the mask and returns it as a ring, first point not repeated. Returns nil
// when the mask has no region of at least MinArea pixels.
func Vectorize(mask *edge.Mask, opts Options) []geometry.Point2D {
	if mask == nil || mask.W == 0 || mask.H == 0 {
		return nil
	}

	labels, best, area := labelComponents(mask)
	if best == 0 || area < opts.MinArea {
		return nil
	}

	ring := traceBoundary(labels, mask.W, mask.H, best)
	if len(ring) <= 2 {
		return ring
	}
	return simplifyRing(ring, opts.SimplifyEpsilon)
}

// labelComponents assigns a label to every 8-connected region and returns
// the label grid together with the largest region's label and area.
func labelComponents(m *edge.Mask) ([]int, int, int) {
	labels := make([]int, m.W*m.H)
	next := 0
	bestLabel, bestArea := 0, 0

	var queue []int
	for i, v := range m.Pix {
		if v == 0 || labels[i] != 0 {
			continue
		}
		next++
		labels[i] = next
		area := 1

		queue = append(queue[:0], i)
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			cx, cy := cur%m.W, cur/m.W

			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx, ny := cx+dx, cy+dy
					if nx < 0 || nx >= m.W || ny < 0 || ny >= m.H {
						continue
					}
					ni := ny*m.W + nx
					if m.Pix[ni] == 0 || labels[ni] != 0 {
						continue
					}
					labels[ni] = next
					area++
					queue = append(queue, ni)
				}
			}
		}

		if area > bestArea {
			bestArea = area
			bestLabel = next
		}
	}
	return labels, bestLabel, bestArea
}

// traceBoundary walks the outer boundary of the labeled region using
// radial-sweep Moore-neighbor tracing. Collinear runs are merged as they
// are appended, so straight edges come back as two points.
func traceBoundary(labels []int, w, h, label int) []geometry.Point2D {
	sx, sy := -1, -1
	for i, l := range labels {
		if l == label {
			sx, sy = i%w, i/w
			break
		}
	}
	if sx < 0 {
		return nil
	}

	isLabel := func(x, y int) bool {
		if x < 0 || x >= w || y < 0 || y >= h {
			return false
		}
		return labels[y*w+x] == label
	}

	// Clockwise neighbor order: E, SE, S, SW, W, NW, N, NE.
	ndx := [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	ndy := [8]int{0, 1, 1, 1, 0, -1, -1, -1}
	dirIndex := func(dx, dy int) int {
		for i := 0; i < 8; i++ {
			if ndx[i] == dx && ndy[i] == dy {
				return i
			}
		}
		return 0
	}

	// advance takes one sweep step: scan the neighborhood clockwise
	// starting one past the backtrack direction, move to the first label
	// pixel, and make the old position the new backtrack.
	advance := func(cx, cy, bx, by int) (int, int, int, int, bool) {
		start := (dirIndex(bx-cx, by-cy) + 1) % 8
		for k := 0; k < 8; k++ {
			i := (start + k) % 8
			tx, ty := cx+ndx[i], cy+ndy[i]
			if isLabel(tx, ty) {
				return tx, ty, cx, cy, true
			}
		}
		return cx, cy, bx, by, false
	}

	pts := make([]geometry.Point2D, 0, 64)
	addPoint := func(x, y int) {
		p := geometry.Point2D{X: float64(x), Y: float64(y)}
		if n := len(pts); n >= 2 {
			a, b := pts[n-2], pts[n-1]
			cross := (b.X-a.X)*(p.Y-b.Y) - (b.Y-a.Y)*(p.X-b.X)
			if cross == 0 {
				pts = pts[:n-1]
			}
		}
		pts = append(pts, p)
	}
	addPoint(sx, sy)

	// The first label pixel in scan order has open cells to its west, so
	// the sweep starts against the west neighbor. The walk is a pure
	// function of (position, backtrack); seeing the state after the first
	// move again means the boundary cycle is complete.
	cx, cy, bx, by, ok := advance(sx, sy, sx-1, sy)
	if !ok {
		return pts
	}
	firstCx, firstCy, firstBx, firstBy := cx, cy, bx, by

	maxSteps := 4*w*h + 8
	for step := 0; step < maxSteps; step++ {
		if last := pts[len(pts)-1]; last.X != float64(cx) || last.Y != float64(cy) {
			addPoint(cx, cy)
		}
		cx, cy, bx, by, ok = advance(cx, cy, bx, by)
		if !ok {
			break
		}
		if cx == firstCx && cy == firstCy && bx == firstBx && by == firstBy {
			break
		}
	}

	// Drop the duplicated closing point left by the return to start.
	if n := len(pts); n >= 2 && pts[0] == pts[n-1] {
		pts = pts[:n-1]
	}
	return pts
}

// simplifyRing runs Douglas-Peucker on a closed ring by splitting it at the
// vertex farthest from the first point and simplifying both halves.
func simplifyRing(ring []geometry.Point2D, epsilon float64) []geometry.Point2D {
	if len(ring) <= 4 || epsilon <= 0 {
		return ring
	}

	far, fi := 0.0, 0
	for i, p := range ring {
		if d := p.Distance(ring[0]); d > far {
			far = d
			fi = i
		}
	}
	if fi == 0 {
		return ring
	}

	closing := append(append([]geometry.Point2D{}, ring[fi:]...), ring[0])
	first := simplifyPath(ring[:fi+1], epsilon)
	second := simplifyPath(closing, epsilon)

	out := make([]geometry.Point2D, 0, len(first)+len(second)-2)
	out = append(out, first...)
	out = append(out, second[1:len(second)-1]...)
	return out
}

// simplifyPath reduces vertex count with the recursive Douglas-Peucker
// algorithm.
func simplifyPath(path []geometry.Point2D, epsilon float64) []geometry.Point2D {
	if len(path) <= 2 {
		return path
	}

	end := len(path) - 1
	dmax, index := 0.0, 0
	for i := 1; i < end; i++ {
		if d := perpendicularDistance(path[i], path[0], path[end]); d > dmax {
			dmax = d
			index = i
		}
	}

	if dmax > epsilon {
		left := simplifyPath(path[:index+1], epsilon)
		right := simplifyPath(path[index:], epsilon)
		result := make([]geometry.Point2D, 0, len(left)+len(right)-1)
		result = append(result, left[:len(left)-1]...)
		result = append(result, right...)
		return result
	}
	return []geometry.Point2D{path[0], path[end]}
}

// perpendicularDistance is the distance from p to the infinite line through
// a and b.
func perpendicularDistance(p, a, b geometry.Point2D) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	if dx == 0 && dy == 0 {
		return p.Distance(a)
	}
	num := math.Abs(dy*p.X - dx*p.Y + b.X*a.Y - b.Y*a.X)
	return num / math.Sqrt(dx*dx+dy*dy)
}

package edge

import (
	"math"
	"sort"

	"contour-tracer/pkg/geometry"
)

// Segment is a straight line segment detected in an edge mask, in pixel
// coordinates.
type Segment struct {
	P0, P1 geometry.PointInt
}

// segmentParams tunes Hough segment extraction. The defaults work for the
// stroke widths and line lengths typical of drafted contour maps.
type segmentParams struct {
	voteThreshold int     // minimum accumulator votes for a candidate line
	minLength     float64 // minimum segment length in pixels
	maxGap        float64 // largest break bridged within one segment
	maxLines      int     // cap on candidate lines taken from the accumulator
	bandWidth     float64 // distance from the line within which pixels count
}

func defaultSegmentParams() segmentParams {
	return segmentParams{
		voteThreshold: 40,
		minLength:     15,
		maxGap:        4,
		maxLines:      64,
		bandWidth:     1.5,
	}
}

// detectSegments extracts straight segments from an edge mask with a Hough
// accumulator: peak lines are found first, then the edge pixels supporting
// each line are projected onto it and split into gap-bounded runs.
func detectSegments(edges *Mask, params segmentParams) []Segment {
	w, h := edges.W, edges.H
	if w == 0 || h == 0 {
		return nil
	}

	maxDist := int(math.Ceil(math.Sqrt(float64(w*w + h*h))))
	const numAngles = 180
	acc := make([]int, maxDist*2*numAngles)

	sin := make([]float64, numAngles)
	cos := make([]float64, numAngles)
	for t := 0; t < numAngles; t++ {
		angle := float64(t) * math.Pi / float64(numAngles)
		sin[t] = math.Sin(angle)
		cos[t] = math.Cos(angle)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if edges.Pix[y*w+x] == 0 {
				continue
			}
			for t := 0; t < numAngles; t++ {
				rho := float64(x)*cos[t] + float64(y)*sin[t]
				rhoIdx := int(math.Round(rho)) + maxDist
				if rhoIdx >= 0 && rhoIdx < maxDist*2 {
					acc[rhoIdx*numAngles+t]++
				}
			}
		}
	}

	type peak struct {
		rhoIdx, theta, votes int
	}
	var peaks []peak
	for rhoIdx := 0; rhoIdx < maxDist*2; rhoIdx++ {
		for t := 0; t < numAngles; t++ {
			votes := acc[rhoIdx*numAngles+t]
			if votes < params.voteThreshold {
				continue
			}
			// Local maximum over a small accumulator neighborhood.
			isMax := true
			for dr := -2; dr <= 2 && isMax; dr++ {
				nr := rhoIdx + dr
				if nr < 0 || nr >= maxDist*2 {
					continue
				}
				for dt := -2; dt <= 2; dt++ {
					nt := (t + dt + numAngles) % numAngles
					if acc[nr*numAngles+nt] > votes {
						isMax = false
						break
					}
				}
			}
			if isMax {
				peaks = append(peaks, peak{rhoIdx, t, votes})
			}
		}
	}

	sort.Slice(peaks, func(i, j int) bool { return peaks[i].votes > peaks[j].votes })
	if len(peaks) > params.maxLines {
		peaks = peaks[:params.maxLines]
	}

	var segments []Segment
	for _, pk := range peaks {
		rho := float64(pk.rhoIdx - maxDist)
		cosA, sinA := cos[pk.theta], sin[pk.theta]

		// Collect supporting pixels and their positions along the line.
		type support struct {
			x, y int
			t    float64
		}
		var pts []support
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if edges.Pix[y*w+x] == 0 {
					continue
				}
				if math.Abs(float64(x)*cosA+float64(y)*sinA-rho) < params.bandWidth {
					// Projection onto the line direction (-sin, cos).
					pts = append(pts, support{x, y, -float64(x)*sinA + float64(y)*cosA})
				}
			}
		}
		if len(pts) < 2 {
			continue
		}
		sort.Slice(pts, func(i, j int) bool { return pts[i].t < pts[j].t })

		// Split the run wherever the gap along the line is too large.
		runStart := 0
		for i := 1; i <= len(pts); i++ {
			if i < len(pts) && pts[i].t-pts[i-1].t <= params.maxGap {
				continue
			}
			a, b := pts[runStart], pts[i-1]
			if b.t-a.t >= params.minLength {
				segments = append(segments, Segment{
					P0: geometry.PointInt{X: a.x, Y: a.y},
					P1: geometry.PointInt{X: b.x, Y: b.y},
				})
			}
			runStart = i
		}
	}

	return segments
}

// rasterizeSegments draws segments into a fresh mask as thick strokes.
func rasterizeSegments(segments []Segment, w, h, thickness int) *Mask {
	mask := NewMask(w, h)
	if thickness < 1 {
		thickness = 1
	}
	for _, s := range segments {
		drawSegment(mask, s, thickness)
	}
	return mask
}

// drawSegment stamps a Bresenham line with the given stroke thickness.
func drawSegment(m *Mask, s Segment, thickness int) {
	x0, y0 := s.P0.X, s.P0.Y
	x1, y1 := s.P1.X, s.P1.Y

	dx := absInt(x1 - x0)
	dy := -absInt(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		for oy := 0; oy < thickness; oy++ {
			for ox := 0; ox < thickness; ox++ {
				m.Set(x0+ox, y0+oy, true)
			}
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

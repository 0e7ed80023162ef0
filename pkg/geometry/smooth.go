package geometry

// Chaikin applies iterative corner-cutting smoothing to a polyline.
// Each segment (p0, p1) is replaced by two points at 1/4 and 3/4
// interpolation. For open paths the first and last points are preserved
// exactly; for closed rings every vertex is treated uniformly so the seam
// smooths like any other corner. Zero iterations returns the input unchanged.
func Chaikin(points []Point2D, iterations int, closed bool) []Point2D {
	if iterations <= 0 || len(points) < 3 {
		return points
	}

	out := points
	for it := 0; it < iterations; it++ {
		if closed {
			out = chaikinClosed(out)
		} else {
			out = chaikinOpen(out)
		}
	}
	return out
}

func chaikinOpen(points []Point2D) []Point2D {
	n := len(points)
	if n < 3 {
		return points
	}

	out := make([]Point2D, 0, 2*n)
	out = append(out, points[0])
	for i := 0; i < n-1; i++ {
		p0, p1 := points[i], points[i+1]
		out = append(out, p0.Lerp(p1, 0.25), p0.Lerp(p1, 0.75))
	}
	out = append(out, points[n-1])
	return out
}

func chaikinClosed(points []Point2D) []Point2D {
	n := len(points)
	if n < 3 {
		return points
	}

	out := make([]Point2D, 0, 2*n)
	for i := 0; i < n; i++ {
		p0, p1 := points[i], points[(i+1)%n]
		out = append(out, p0.Lerp(p1, 0.25), p0.Lerp(p1, 0.75))
	}
	return out
}

// MovingAverage smooths a polyline with a centered sliding-window mean of the
// given window size. The first and last points are kept in place so the
// smoothed path still joins whatever it was connected to; interior points are
// averaged over the window clamped to the path bounds.
func MovingAverage(points []Point2D, window int) []Point2D {
	n := len(points)
	if window < 3 || n < 3 {
		return points
	}

	radius := window / 2
	out := make([]Point2D, n)
	out[0] = points[0]
	out[n-1] = points[n-1]
	for i := 1; i < n-1; i++ {
		lo := i - radius
		if lo < 0 {
			lo = 0
		}
		hi := i + radius
		if hi > n-1 {
			hi = n - 1
		}

		var sx, sy float64
		for j := lo; j <= hi; j++ {
			sx += points[j].X
			sy += points[j].Y
		}
		count := float64(hi - lo + 1)
		out[i] = Point2D{X: sx / count, Y: sy / count}
	}
	return out
}

// Downsample reduces a polyline to at most maxPoints vertices by uniform
// index selection, always keeping the first and last points. Paths already
// within the limit are returned unchanged.
func Downsample(points []Point2D, maxPoints int) []Point2D {
	n := len(points)
	if maxPoints < 2 || n <= maxPoints {
		return points
	}

	out := make([]Point2D, maxPoints)
	step := float64(n-1) / float64(maxPoints-1)
	for i := 0; i < maxPoints; i++ {
		idx := int(float64(i)*step + 0.5)
		if idx > n-1 {
			idx = n - 1
		}
		out[i] = points[idx]
	}
	out[maxPoints-1] = points[n-1]
	return out
}

// EMA is an exponential-moving-average filter for pointer positions. Alpha in
// (0, 1] controls responsiveness: 1 passes input through unchanged, smaller
// values lag behind fast motion but suppress hand jitter.
type EMA struct {
	Alpha float64

	current Point2D
	primed  bool
}

// Update feeds a new raw position and returns the smoothed one.
func (e *EMA) Update(p Point2D) Point2D {
	a := e.Alpha
	if a <= 0 || a > 1 {
		a = 1
	}
	if !e.primed {
		e.current = p
		e.primed = true
		return p
	}
	e.current = Point2D{
		X: a*p.X + (1-a)*e.current.X,
		Y: a*p.Y + (1-a)*e.current.Y,
	}
	return e.current
}

// Reset clears the filter state so the next update passes through unchanged.
func (e *EMA) Reset() {
	e.primed = false
}

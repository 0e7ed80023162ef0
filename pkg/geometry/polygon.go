package geometry

// Ring helpers operate on unclosed rings: the first point is not repeated
// at the end. That is how the session and the feature store carry polygon
// geometry; GeoJSON closure is added at the serialization boundary.

// SignedArea returns the shoelace area of a ring. Positive means
// counterclockwise winding in a y-up world; collinear rings yield zero.
func SignedArea(ring []Point2D) float64 {
	if len(ring) < 3 {
		return 0
	}
	sum := 0.0
	for i, p := range ring {
		q := ring[(i+1)%len(ring)]
		sum += p.X*q.Y - q.X*p.Y
	}
	return sum / 2
}

// RingArea returns the enclosed area of a ring regardless of winding.
func RingArea(ring []Point2D) float64 {
	a := SignedArea(ring)
	if a < 0 {
		return -a
	}
	return a
}

// IsClockwise reports whether the ring winds clockwise in a y-up world.
func IsClockwise(ring []Point2D) bool {
	return SignedArea(ring) < 0
}

// ReverseRing returns the ring with its winding flipped. The input is not
// modified.
func ReverseRing(ring []Point2D) []Point2D {
	out := make([]Point2D, len(ring))
	for i, p := range ring {
		out[len(ring)-1-i] = p
	}
	return out
}

// PointInRing tests whether p lies inside the ring by even-odd ray
// casting. Fewer than 3 vertices enclose nothing.
func PointInRing(p Point2D, ring []Point2D) bool {
	if len(ring) < 3 {
		return false
	}
	inside := false
	for i, a := range ring {
		b := ring[(i+1)%len(ring)]
		if (a.Y > p.Y) != (b.Y > p.Y) &&
			p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
	}
	return inside
}

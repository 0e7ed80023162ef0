// Package feature stores traced map features: contour lines, closed
// regions, and spot markers, in world coordinates. The store is the sink
// the tracing session commits geometry into and the index used to find
// resumable line endpoints.
package feature

import "contour-tracer/pkg/geometry"

// Kind distinguishes feature geometry.
type Kind int

const (
	// KindLine is an open polyline.
	KindLine Kind = iota
	// KindPolygon is a closed ring; Points holds it unclosed.
	KindPolygon
	// KindSpot is a single marker point.
	KindSpot
)

func (k Kind) String() string {
	switch k {
	case KindLine:
		return "line"
	case KindPolygon:
		return "polygon"
	case KindSpot:
		return "spot"
	default:
		return "unknown"
	}
}

// Attributes carries the scalar attributes captured when a trace commits.
type Attributes struct {
	// Elevation is the contour value; valid only when HasElevation is set.
	Elevation    float64
	HasElevation bool
}

// Feature is a committed trace result.
type Feature struct {
	ID     string
	Kind   Kind
	Points []geometry.Point2D // world coordinates
	Attrs  Attributes
}

// Endpoint identifies one end of a stored line feature, used to resume
// tracing from where an earlier line stopped.
type Endpoint struct {
	Point     geometry.Point2D
	FeatureID string
	// AtStart reports which end of the line the point is.
	AtStart bool
}

//go:build !opencv

package segment

import (
	"contour-tracer/internal/edge"
	"contour-tracer/internal/raster"
	"contour-tracer/pkg/geometry"
)

// GrabCutSource needs the opencv build tag; without it every prediction
// reports ErrUnavailable and the tracing workflow simply runs without
// region segmentation.
type GrabCutSource struct{}

// NewGrabCutSource returns a non-functional source.
func NewGrabCutSource() *GrabCutSource { return &GrabCutSource{} }

func (s *GrabCutSource) SetContext(tile *raster.Tile) {}

func (s *GrabCutSource) Predict(foreground, background []geometry.PointInt) (*edge.Mask, error) {
	return nil, ErrUnavailable
}

func (s *GrabCutSource) Close() {}

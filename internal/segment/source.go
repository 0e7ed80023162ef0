// Package segment integrates externally produced segmentation masks into
// the tracing workflow. A mask source is handed the current view tile as
// context and asked for a region mask from operator-placed seed points; the
// resulting mask is vectorized into a boundary polyline the same way traced
// geometry is.
package segment

import (
	"errors"

	"contour-tracer/internal/edge"
	"contour-tracer/internal/raster"
	"contour-tracer/pkg/geometry"
)

// ErrUnavailable reports that no mask can be produced, either because the
// backend is not compiled in or because no context image has been set.
var ErrUnavailable = errors.New("segment: mask source unavailable")

// Source produces region masks from seed points. Implementations keep the
// context image between calls so repeated predictions on the same view are
// cheap.
type Source interface {
	// SetContext installs the image subsequent predictions run against.
	SetContext(tile *raster.Tile)
	// Predict computes a region mask from foreground and background seed
	// points in tile pixel coordinates.
	Predict(foreground, background []geometry.PointInt) (*edge.Mask, error)
}

package raster

import (
	"errors"

	"contour-tracer/pkg/geometry"
)

// ErrNoData indicates the requested window lies entirely outside the raster.
var ErrNoData = errors.New("raster: no data in requested window")

// Source provides windows of a georeferenced grayscale raster.
type Source interface {
	// ReadWindow returns the intensity samples covering the given
	// world-coordinate rectangle. The returned tile spans the requested
	// extent with row 0 on the extent's maximum-Y edge; areas without
	// raster coverage are zero-filled. Returns ErrNoData when nothing in
	// the window is covered.
	ReadWindow(extent geometry.Rect) (*Tile, error)

	// PixelSize returns the world-coordinate size of one source pixel.
	PixelSize() (w, h float64)
}

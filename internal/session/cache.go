package session

import (
	"fmt"
	"math"

	"contour-tracer/internal/costfield"
	"contour-tracer/internal/edge"
	"contour-tracer/internal/raster"
	"contour-tracer/pkg/geometry"
)

// ViewCache holds the tile, edge mask and cost field for one view extent,
// together with the affine transform binding field cells to world
// coordinates. It is rebuilt whole on Refresh and owned exclusively by its
// session; a view change invalidates it and the next search rebuilds it.
type ViewCache struct {
	valid  bool
	extent geometry.Rect

	tile  *raster.Tile
	mask  *edge.Mask
	field *costfield.Field

	toWorld geometry.AffineTransform
	toPixel geometry.AffineTransform
	cellW   float64
	cellH   float64
}

// Refresh rebuilds the cache for a new extent: read the window, detect
// edges, build the cost field and bind it to world coordinates. On error the
// cache stays invalid.
func (c *ViewCache) Refresh(src raster.Source, det *edge.Detector, fields *costfield.Builder, extent geometry.Rect, adherence float64) error {
	c.valid = false
	if extent.Width <= 0 || extent.Height <= 0 {
		return fmt.Errorf("session: refreshing view cache: empty extent")
	}

	tile, err := src.ReadWindow(extent)
	if err != nil {
		return fmt.Errorf("session: refreshing view cache: %w", err)
	}
	if tile.Empty() {
		return fmt.Errorf("session: refreshing view cache: %w", raster.ErrNoData)
	}

	c.tile = tile
	c.mask = det.Detect(tile)
	c.field = fields.Build(c.mask, adherence)

	// Cell centers: field cell (0, 0) sits half a cell in from the
	// extent's top-left (minimum X, maximum Y) corner.
	c.extent = extent
	c.cellW = extent.Width / float64(tile.W)
	c.cellH = extent.Height / float64(tile.H)
	c.toWorld = geometry.AffineTransform{
		A: c.cellW, B: 0, TX: extent.X + c.cellW/2,
		C: 0, D: -c.cellH, TY: extent.Y + extent.Height - c.cellH/2,
	}
	inv, ok := c.toWorld.Inverse()
	if !ok {
		return fmt.Errorf("session: refreshing view cache: degenerate cell size")
	}
	c.toPixel = inv
	c.valid = true
	return nil
}

// Invalidate marks the cache stale. The next Refresh rebuilds it.
func (c *ViewCache) Invalidate() {
	c.valid = false
}

// Valid reports whether the cache matches the current view.
func (c *ViewCache) Valid() bool {
	return c.valid
}

// Extent returns the world rectangle the cache covers.
func (c *ViewCache) Extent() geometry.Rect {
	return c.extent
}

// Field returns the cached cost field, nil while invalid.
func (c *ViewCache) Field() *costfield.Field {
	if !c.valid {
		return nil
	}
	return c.field
}

// Tile returns the cached image tile, nil while invalid.
func (c *ViewCache) Tile() *raster.Tile {
	if !c.valid {
		return nil
	}
	return c.tile
}

// Mask returns the cached edge mask, nil while invalid.
func (c *ViewCache) Mask() *edge.Mask {
	if !c.valid {
		return nil
	}
	return c.mask
}

// CellSize returns the world size of one field cell.
func (c *ViewCache) CellSize() (w, h float64) {
	return c.cellW, c.cellH
}

// ToPixel converts a world point to the nearest field cell.
func (c *ViewCache) ToPixel(world geometry.Point2D) geometry.PointInt {
	p := c.toPixel.Apply(world)
	return geometry.PointInt{X: int(math.Round(p.X)), Y: int(math.Round(p.Y))}
}

// ToWorld converts sub-pixel field coordinates to world coordinates.
func (c *ViewCache) ToWorld(px geometry.Point2D) geometry.Point2D {
	return c.toWorld.Apply(px)
}

// WorldPath converts a whole pixel-space path to world coordinates.
func (c *ViewCache) WorldPath(points []geometry.Point2D) []geometry.Point2D {
	return c.toWorld.ApplyAll(points)
}

// SnapToEdge moves a world point onto the nearest detected edge cell within
// radiusPx cells. The second return reports whether an edge was found; if
// not, the point comes back unchanged.
func (c *ViewCache) SnapToEdge(world geometry.Point2D, radiusPx int) (geometry.Point2D, bool) {
	if !c.valid || radiusPx <= 0 {
		return world, false
	}
	px := c.ToPixel(world)
	hit, ok := c.mask.NearestEdge(px.X, px.Y, radiusPx)
	if !ok {
		return world, false
	}
	return c.toWorld.Apply(hit.ToFloat()), true
}

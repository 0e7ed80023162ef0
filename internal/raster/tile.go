// Package raster provides grayscale raster access for the tracing engine.
// A Source hands out Tiles covering the current view window; tiles are
// single-channel, 8-bit, and owned by whoever requested them.
package raster

import (
	"image"

	"github.com/anthonynsimon/bild/effect"
)

// Tile is a single-channel intensity grid covering one view window.
type Tile struct {
	W, H int
	Pix  []uint8 // row-major, length W*H
}

// NewTile creates a zeroed tile of the given dimensions.
func NewTile(w, h int) *Tile {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Tile{W: w, H: h, Pix: make([]uint8, w*h)}
}

// At returns the intensity at (x, y), or 0 outside the tile.
func (t *Tile) At(x, y int) uint8 {
	if x < 0 || x >= t.W || y < 0 || y >= t.H {
		return 0
	}
	return t.Pix[y*t.W+x]
}

// Set writes the intensity at (x, y). Out-of-bounds writes are ignored.
func (t *Tile) Set(x, y int, v uint8) {
	if x < 0 || x >= t.W || y < 0 || y >= t.H {
		return
	}
	t.Pix[y*t.W+x] = v
}

// Empty returns true if the tile holds no samples.
func (t *Tile) Empty() bool {
	return t == nil || t.W == 0 || t.H == 0
}

// FromImage converts an image to a grayscale tile using luminance weighting.
func FromImage(img image.Image) *Tile {
	if img == nil {
		return NewTile(0, 0)
	}

	gray := effect.Grayscale(img)
	bounds := gray.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	tile := NewTile(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// Grayscale output has R == G == B.
			tile.Pix[y*w+x] = gray.Pix[gray.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)]
		}
	}
	return tile
}

// ToImage converts the tile back to a standard grayscale image.
func (t *Tile) ToImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, t.W, t.H))
	copy(img.Pix, t.Pix)
	return img
}

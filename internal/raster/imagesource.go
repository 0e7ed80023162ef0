package raster

import (
	"bufio"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"contour-tracer/pkg/geometry"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// DefaultMaxTileEdge caps the longer edge of tiles returned by ReadWindow.
// Large view windows are downsampled to this size before edge detection so
// the interactive pipeline stays responsive.
const DefaultMaxTileEdge = 800

// ImageSource serves windows from an in-memory image bound to world
// coordinates by an affine transform (pixel column/row to world x/y).
type ImageSource struct {
	img     image.Image
	toWorld geometry.AffineTransform
	toPixel geometry.AffineTransform

	// MaxEdge caps the longer edge of returned tiles.
	MaxEdge int
}

// NewImageSource creates a source from an image and its pixel-to-world
// transform. The transform must be invertible.
func NewImageSource(img image.Image, toWorld geometry.AffineTransform) (*ImageSource, error) {
	toPixel, ok := toWorld.Inverse()
	if !ok {
		return nil, fmt.Errorf("raster: pixel-to-world transform is not invertible")
	}
	return &ImageSource{
		img:     img,
		toWorld: toWorld,
		toPixel: toPixel,
		MaxEdge: DefaultMaxTileEdge,
	}, nil
}

// NewCalibratedSource creates a source whose georeferencing is fitted from
// control points: pixel positions and the world positions they correspond to.
func NewCalibratedSource(img image.Image, pixel, world []geometry.Point2D) (*ImageSource, error) {
	toWorld, err := geometry.FitAffine(pixel, world)
	if err != nil {
		return nil, fmt.Errorf("raster: calibrating from control points: %w", err)
	}
	return NewImageSource(img, toWorld)
}

// LoadFile opens an image file and georeferences it from a world file
// sitting next to it (.tfw, .pgw, .jgw or .wld). Without a world file the
// image is served in pixel coordinates.
func LoadFile(path string) (*ImageSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("raster: opening image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("raster: decoding image: %w", err)
	}

	toWorld := geometry.Identity()
	if t, err := loadWorldFile(path); err == nil {
		toWorld = t
	}
	return NewImageSource(img, toWorld)
}

// Transform returns the pixel-to-world transform of the source raster.
func (s *ImageSource) Transform() geometry.AffineTransform {
	return s.toWorld
}

// PixelSize returns the world size of one source pixel.
func (s *ImageSource) PixelSize() (float64, float64) {
	return math.Abs(s.toWorld.A), math.Abs(s.toWorld.D)
}

// ReadWindow returns a grayscale tile spanning the given world extent.
// Areas outside the raster are zero-filled; a window with no coverage at all
// returns ErrNoData. Tiles larger than MaxEdge are downsampled.
func (s *ImageSource) ReadWindow(extent geometry.Rect) (*Tile, error) {
	if extent.Width <= 0 || extent.Height <= 0 {
		return nil, ErrNoData
	}

	// Pixel bounding box of the window corners.
	corners := []geometry.Point2D{
		{X: extent.X, Y: extent.Y},
		{X: extent.X + extent.Width, Y: extent.Y},
		{X: extent.X, Y: extent.Y + extent.Height},
		{X: extent.X + extent.Width, Y: extent.Y + extent.Height},
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range corners {
		p := s.toPixel.Apply(c)
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}

	window := image.Rect(
		int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Ceil(maxX)), int(math.Ceil(maxY)),
	)
	if window.Dx() < 1 || window.Dy() < 1 {
		return nil, ErrNoData
	}

	covered := window.Intersect(s.img.Bounds())
	if covered.Empty() {
		return nil, ErrNoData
	}

	tile := NewTile(window.Dx(), window.Dy())
	crop := FromImage(imaging.Crop(s.img, covered))
	offX := covered.Min.X - window.Min.X
	offY := covered.Min.Y - window.Min.Y
	for y := 0; y < crop.H; y++ {
		copy(tile.Pix[(y+offY)*tile.W+offX:(y+offY)*tile.W+offX+crop.W], crop.Pix[y*crop.W:(y+1)*crop.W])
	}

	// Honor the row-order contract: tile row 0 sits on the extent's
	// maximum-Y edge. A transform with positive D stores rows in ascending
	// world Y, so those tiles come out upside down and need the swap.
	if s.toWorld.D > 0 {
		flipRows(tile)
	}

	maxEdge := s.MaxEdge
	if maxEdge <= 0 {
		maxEdge = DefaultMaxTileEdge
	}
	longest := tile.W
	if tile.H > longest {
		longest = tile.H
	}
	if longest > maxEdge {
		scale := float64(maxEdge) / float64(longest)
		w := int(math.Round(float64(tile.W) * scale))
		h := int(math.Round(float64(tile.H) * scale))
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		tile = FromImage(imaging.Resize(tile.ToImage(), w, h, imaging.Lanczos))
	}

	return tile, nil
}

// flipRows reverses the tile's row order in place.
func flipRows(t *Tile) {
	tmp := make([]uint8, t.W)
	for top, bot := 0, t.H-1; top < bot; top, bot = top+1, bot-1 {
		a := t.Pix[top*t.W : (top+1)*t.W]
		b := t.Pix[bot*t.W : (bot+1)*t.W]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}

// loadWorldFile reads the six-line ESRI world file accompanying an image.
func loadWorldFile(imagePath string) (geometry.AffineTransform, error) {
	for _, path := range worldFileCandidates(imagePath) {
		file, err := os.Open(path)
		if err != nil {
			continue
		}

		var vals []float64
		scanner := bufio.NewScanner(file)
		for scanner.Scan() && len(vals) < 6 {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			v, err := strconv.ParseFloat(line, 64)
			if err != nil {
				break
			}
			vals = append(vals, v)
		}
		file.Close()

		if len(vals) != 6 {
			continue
		}

		// World file order: x size, y rotation, x rotation, y size,
		// x origin, y origin.
		return geometry.AffineTransform{
			A: vals[0], B: vals[2], TX: vals[4],
			C: vals[1], D: vals[3], TY: vals[5],
		}, nil
	}
	return geometry.AffineTransform{}, fmt.Errorf("raster: no world file for %s", imagePath)
}

// worldFileCandidates lists sidecar paths to try: the abbreviated extension
// (first and last letter plus "w", e.g. .tif -> .tfw) and the generic .wld.
func worldFileCandidates(imagePath string) []string {
	ext := filepath.Ext(imagePath)
	base := strings.TrimSuffix(imagePath, ext)

	var candidates []string
	trimmed := strings.TrimPrefix(strings.ToLower(ext), ".")
	if len(trimmed) >= 2 {
		abbr := string(trimmed[0]) + string(trimmed[len(trimmed)-1]) + "w"
		candidates = append(candidates, base+"."+abbr)
	}
	return append(candidates, base+".wld")
}

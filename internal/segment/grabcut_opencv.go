//go:build opencv

package segment

import (
	"fmt"
	"image"

	"contour-tracer/internal/edge"
	"contour-tracer/internal/raster"
	"contour-tracer/pkg/geometry"

	"gocv.io/x/gocv"
)

// GrabCutSource produces region masks with OpenCV's GrabCut, seeded by the
// operator's foreground and background points.
type GrabCutSource struct {
	img    gocv.Mat
	w, h   int
	hasCtx bool

	// Iterations is the number of GrabCut refinement rounds per call.
	Iterations int
	// SeedRadius is the stamp radius around each seed point, in pixels.
	SeedRadius int
}

// NewGrabCutSource returns a source with no context image. Predictions fail
// with ErrUnavailable until SetContext is called.
func NewGrabCutSource() *GrabCutSource {
	return &GrabCutSource{Iterations: 5, SeedRadius: 3}
}

// SetContext converts the tile to the BGR image GrabCut segments against.
func (s *GrabCutSource) SetContext(tile *raster.Tile) {
	s.release()
	if tile.Empty() {
		return
	}

	gray, err := gocv.NewMatFromBytes(tile.H, tile.W, gocv.MatTypeCV8UC1, tile.Pix)
	if err != nil {
		return
	}
	defer gray.Close()

	s.img = gocv.NewMat()
	gocv.CvtColor(gray, &s.img, gocv.ColorGrayToBGR)
	s.w, s.h = tile.W, tile.H
	s.hasCtx = true
}

// Predict segments the context image around the seed points. The seed mask
// starts as probable background (class 2) everywhere, with certain
// foreground (1) and certain background (0) disks stamped at the points.
func (s *GrabCutSource) Predict(foreground, background []geometry.PointInt) (*edge.Mask, error) {
	if !s.hasCtx {
		return nil, ErrUnavailable
	}
	if len(foreground) == 0 {
		return nil, fmt.Errorf("segment: at least one foreground seed required")
	}

	seed := make([]byte, s.w*s.h)
	for i := range seed {
		seed[i] = 2
	}
	for _, p := range background {
		stampDisk(seed, s.w, s.h, p, s.SeedRadius, 0)
	}
	for _, p := range foreground {
		stampDisk(seed, s.w, s.h, p, s.SeedRadius, 1)
	}

	maskMat, err := gocv.NewMatFromBytes(s.h, s.w, gocv.MatTypeCV8UC1, seed)
	if err != nil {
		return nil, fmt.Errorf("segment: building seed mask: %w", err)
	}
	defer maskMat.Close()

	bgModel := gocv.NewMat()
	defer bgModel.Close()
	fgModel := gocv.NewMat()
	defer fgModel.Close()

	gocv.GrabCut(s.img, &maskMat, image.Rectangle{}, &bgModel, &fgModel, s.Iterations, gocv.GCInitWithMask)

	out := edge.NewMask(s.w, s.h)
	for y := 0; y < s.h; y++ {
		for x := 0; x < s.w; x++ {
			// Certain (1) and probable (3) foreground both count.
			if v := maskMat.GetUCharAt(y, x); v == 1 || v == 3 {
				out.Pix[y*s.w+x] = 255
			}
		}
	}
	return out, nil
}

// Close releases the context image.
func (s *GrabCutSource) Close() {
	s.release()
}

func (s *GrabCutSource) release() {
	if s.hasCtx {
		s.img.Close()
		s.hasCtx = false
	}
}

func stampDisk(buf []byte, w, h int, p geometry.PointInt, r int, class byte) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy > r*r {
				continue
			}
			x, y := p.X+dx, p.Y+dy
			if x < 0 || x >= w || y < 0 || y >= h {
				continue
			}
			buf[y*w+x] = class
		}
	}
}

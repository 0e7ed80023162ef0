//go:build opencv

package edge

import (
	"fmt"
	"image"
	"os"

	"contour-tracer/internal/raster"

	"gocv.io/x/gocv"
)

// denseEdgeNet wraps a pretrained holistically-nested edge detection model
// loaded through OpenCV's DNN module.
type denseEdgeNet struct {
	net gocv.Net
}

func loadDenseEdgeNet(proto, weights string) (*denseEdgeNet, error) {
	if proto == "" || weights == "" {
		return nil, ErrModelUnavailable
	}
	if _, err := os.Stat(proto); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if _, err := os.Stat(weights); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}

	net := gocv.ReadNetFromCaffe(proto, weights)
	if net.Empty() {
		return nil, fmt.Errorf("%w: failed to load %s", ErrModelUnavailable, weights)
	}
	return &denseEdgeNet{net: net}, nil
}

// infer runs the model over the tile and binarizes the edge-probability map
// at the given cutoff.
func (n *denseEdgeNet) infer(tile *raster.Tile, threshold uint8) (*Mask, error) {
	gray, err := gocv.NewMatFromBytes(tile.H, tile.W, gocv.MatTypeCV8UC1, tile.Pix)
	if err != nil {
		return nil, fmt.Errorf("edge: building input mat: %w", err)
	}
	defer gray.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(gray, &bgr, gocv.ColorGrayToBGR)

	// Per-channel means the model was trained with.
	mean := gocv.NewScalar(104.00698793, 116.66876762, 122.67891434, 0)
	blob := gocv.BlobFromImage(bgr, 1.0, image.Pt(tile.W, tile.H), mean, false, false)
	defer blob.Close()

	n.net.SetInput(blob, "")
	out := n.net.Forward("")
	defer out.Close()

	// Output is a 1x1xHxW probability map; flatten to HxW for access.
	prob := out.Reshape(1, tile.H)
	defer prob.Close()

	mask := NewMask(tile.W, tile.H)
	cut := float32(threshold) / 255.0
	for y := 0; y < tile.H; y++ {
		for x := 0; x < tile.W; x++ {
			if prob.GetFloatAt(y, x) >= cut {
				mask.Pix[y*tile.W+x] = 255
			}
		}
	}
	return mask, nil
}

func (n *denseEdgeNet) close() {
	n.net.Close()
}

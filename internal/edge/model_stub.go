//go:build !opencv

package edge

import "contour-tracer/internal/raster"

// denseEdgeNet is unavailable without the opencv build tag; the detector
// falls back to the adaptive strategy.
type denseEdgeNet struct{}

func loadDenseEdgeNet(proto, weights string) (*denseEdgeNet, error) {
	return nil, ErrModelUnavailable
}

func (n *denseEdgeNet) infer(tile *raster.Tile, threshold uint8) (*Mask, error) {
	return nil, ErrModelUnavailable
}

func (n *denseEdgeNet) close() {}

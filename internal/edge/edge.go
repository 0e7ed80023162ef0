// Package edge turns grayscale raster tiles into binary edge masks.
//
// Detection strategies range from a fast adaptive threshold that is always
// available to a pretrained dense-edge network loaded through OpenCV when
// the binary is built with the opencv tag. Every strategy degrades silently:
// a failed detector yields an empty mask or falls back to the adaptive pass,
// never an error, because the tracing pipeline downstream must always end up
// with some cost field.
package edge

import (
	"errors"

	"contour-tracer/internal/raster"
)

// ErrModelUnavailable indicates dense-edge inference cannot run, either
// because the binary was built without OpenCV support or the model files
// could not be loaded.
var ErrModelUnavailable = errors.New("edge: dense edge model unavailable")

// Strategy selects the edge detection algorithm.
type Strategy int

const (
	// StrategyAdaptive combines an adaptive dark-stroke threshold with
	// gradient edges. The default; works without any external dependency.
	StrategyAdaptive Strategy = iota
	// StrategyLineSegment rasterizes detected straight segments. Produces
	// visually straighter output on drafted, engineered line work.
	StrategyLineSegment
	// StrategyDenseEdge runs a pretrained convolutional edge-probability
	// model, falling back to StrategyAdaptive when unavailable.
	StrategyDenseEdge
)

func (s Strategy) String() string {
	switch s {
	case StrategyAdaptive:
		return "adaptive"
	case StrategyLineSegment:
		return "line-segment"
	case StrategyDenseEdge:
		return "dense-edge"
	default:
		return "unknown"
	}
}

// ParseStrategy maps a strategy name to its value, defaulting to adaptive.
func ParseStrategy(name string) Strategy {
	switch name {
	case "line-segment", "lines":
		return StrategyLineSegment
	case "dense-edge", "model":
		return StrategyDenseEdge
	default:
		return StrategyAdaptive
	}
}

// Options configures a Detector.
type Options struct {
	Strategy Strategy

	// BlockSize is the adaptive threshold neighborhood; must be odd.
	BlockSize int
	// ThresholdOffset is how much darker than the local mean a pixel must
	// be to count as stroke in the adaptive strategy.
	ThresholdOffset float64
	// SegmentThresholdOffset is the lighter offset used for the adaptive
	// pass that backs the line-segment strategy.
	SegmentThresholdOffset float64

	// GradientLow and GradientHigh are the hysteresis thresholds of the
	// gradient edge pass.
	GradientLow  float64
	GradientHigh float64

	// Thin reduces detected edges to single-pixel width before they are
	// handed to the cost-field builder.
	Thin bool

	// ModelProto and ModelWeights locate the dense edge model definition
	// and weights on disk.
	ModelProto   string
	ModelWeights string
	// ModelThreshold binarizes the model's probability map (0-255 scale).
	ModelThreshold uint8
}

// DefaultOptions returns detection parameters tuned for dark contour lines
// on scanned maps.
func DefaultOptions() Options {
	return Options{
		Strategy:               StrategyAdaptive,
		BlockSize:              21,
		ThresholdOffset:        10,
		SegmentThresholdOffset: 8,
		GradientLow:            30,
		GradientHigh:           100,
		Thin:                   false,
		ModelThreshold:         50,
	}
}

// WithStrategy returns a copy of the options with the given strategy.
func (o Options) WithStrategy(s Strategy) Options {
	o.Strategy = s
	return o
}

// WithThinning returns a copy of the options with thinning enabled or not.
func (o Options) WithThinning(thin bool) Options {
	o.Thin = thin
	return o
}

// WithBlockSize returns a copy of the options with the adaptive threshold
// neighborhood size, forced odd.
func (o Options) WithBlockSize(block int) Options {
	if block < 3 {
		block = 3
	}
	if block%2 == 0 {
		block++
	}
	o.BlockSize = block
	return o
}

// WithModelFiles returns a copy of the options pointing at dense edge model
// files.
func (o Options) WithModelFiles(proto, weights string) Options {
	o.ModelProto = proto
	o.ModelWeights = weights
	return o
}

// Detector converts tiles into edge masks using the configured strategy.
type Detector struct {
	opts Options

	net       *denseEdgeNet
	netFailed bool
}

// NewDetector creates a detector. Model files for the dense-edge strategy
// are loaded lazily on first use.
func NewDetector(opts Options) *Detector {
	if opts.BlockSize < 3 {
		opts.BlockSize = DefaultOptions().BlockSize
	}
	if opts.BlockSize%2 == 0 {
		opts.BlockSize++
	}
	return &Detector{opts: opts}
}

// Options returns the detector's configuration.
func (d *Detector) Options() Options {
	return d.opts
}

// Detect produces an edge mask for the tile. It never fails: detector
// problems surface as an empty mask or a fallback to the adaptive strategy.
func (d *Detector) Detect(tile *raster.Tile) *Mask {
	if tile.Empty() {
		return NewMask(0, 0)
	}

	var mask *Mask
	switch d.opts.Strategy {
	case StrategyLineSegment:
		mask = d.detectLineSegment(tile)
	case StrategyDenseEdge:
		mask = d.detectDenseEdge(tile)
	default:
		mask = d.detectAdaptive(tile)
	}

	if d.opts.Thin {
		mask = Thin(mask)
	}
	return mask
}

// Close releases any loaded model resources.
func (d *Detector) Close() {
	if d.net != nil {
		d.net.close()
		d.net = nil
	}
}

// detectAdaptive is the default pass: dark strokes from the adaptive
// threshold, OR-combined with gradient edges, then a small closing to bridge
// speckle gaps.
func (d *Detector) detectAdaptive(tile *raster.Tile) *Mask {
	mask := adaptiveThreshold(tile, d.opts.BlockSize, d.opts.ThresholdOffset)
	mask.Or(cannyEdges(tile, d.opts.GradientLow, d.opts.GradientHigh))
	return closeGaps(mask, 2)
}

// detectLineSegment rasterizes straight segments found in the gradient edge
// image as 2-pixel strokes, merged with a lighter adaptive pass.
func (d *Detector) detectLineSegment(tile *raster.Tile) *Mask {
	edges := cannyEdges(tile, d.opts.GradientLow, d.opts.GradientHigh)
	segments := detectSegments(edges, defaultSegmentParams())
	mask := rasterizeSegments(segments, tile.W, tile.H, 2)
	mask.Or(adaptiveThreshold(tile, d.opts.BlockSize, d.opts.SegmentThresholdOffset))
	return closeGaps(mask, 3)
}

// detectDenseEdge runs the pretrained model, falling back to the adaptive
// strategy if the model cannot be loaded or inference fails.
func (d *Detector) detectDenseEdge(tile *raster.Tile) *Mask {
	if d.net == nil && !d.netFailed {
		net, err := loadDenseEdgeNet(d.opts.ModelProto, d.opts.ModelWeights)
		if err != nil {
			d.netFailed = true
		} else {
			d.net = net
		}
	}
	if d.net != nil {
		if mask, err := d.net.infer(tile, d.opts.ModelThreshold); err == nil {
			return mask
		}
	}
	return d.detectAdaptive(tile)
}

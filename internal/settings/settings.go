// Package settings persists operator preferences as JSON under the user
// config directory, with load-or-default semantics: a missing or unreadable
// file yields the defaults, and fields absent from the file keep their
// default values.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"contour-tracer/internal/edge"
	"contour-tracer/internal/session"
)

const settingsFile = "settings.json"

// Settings is the persisted operator configuration. Pixel-denominated
// tolerances are stored as pixels; the session converts them through the
// view transform at use time.
type Settings struct {
	// Strategy names the edge detection strategy: adaptive, line-segment
	// or dense-edge.
	Strategy     string `json:"strategy"`
	Thinning     bool   `json:"thinning"`
	BlockSize    int    `json:"block_size"`
	ModelProto   string `json:"model_proto,omitempty"`
	ModelWeights string `json:"model_weights,omitempty"`

	EdgeAdherence float64 `json:"edge_adherence"`
	Freehand      bool    `json:"freehand"`
	SpotFeatures  bool    `json:"spot_features"`

	PreviewSmoothing int `json:"preview_smoothing"`
	FinalSmoothing   int `json:"final_smoothing"`
	MaxPreviewPoints int `json:"max_preview_points"`

	SnapRadius      int     `json:"snap_radius"`
	SnapMaxAngle    float64 `json:"snap_max_angle"`
	CloseTolerance  float64 `json:"close_tolerance"`
	MinClosePoints  int     `json:"min_close_points"`
	DragMinDistance float64 `json:"drag_min_distance"`
	ResumeTolerance float64 `json:"resume_tolerance"`

	CursorSmoothing float64 `json:"cursor_smoothing"`
}

// Default returns the settings matching session.DefaultOptions().
func Default() Settings {
	opts := session.DefaultOptions()
	return Settings{
		Strategy:         opts.Detect.Strategy.String(),
		Thinning:         opts.Detect.Thin,
		BlockSize:        opts.Detect.BlockSize,
		EdgeAdherence:    opts.Adherence,
		Freehand:         opts.Freehand,
		SpotFeatures:     opts.SpotFeatures,
		PreviewSmoothing: opts.PreviewIterations,
		FinalSmoothing:   opts.FinalIterations,
		MaxPreviewPoints: opts.MaxPreviewPoints,
		SnapRadius:       opts.SnapRadiusPx,
		SnapMaxAngle:     opts.SnapMaxAngleDeg,
		CloseTolerance:   opts.CloseTolerancePx,
		MinClosePoints:   opts.MinClosePoints,
		DragMinDistance:  opts.DragMinDistancePx,
		ResumeTolerance:  opts.ResumeTolerancePx,
		CursorSmoothing:  opts.CursorAlpha,
	}
}

// SessionOptions converts the settings into session options.
func (s Settings) SessionOptions() session.Options {
	opts := session.DefaultOptions()
	opts.Adherence = s.EdgeAdherence
	opts.Freehand = s.Freehand
	opts.SpotFeatures = s.SpotFeatures
	opts.PreviewIterations = s.PreviewSmoothing
	opts.FinalIterations = s.FinalSmoothing
	opts.MaxPreviewPoints = s.MaxPreviewPoints
	opts.SnapRadiusPx = s.SnapRadius
	opts.SnapMaxAngleDeg = s.SnapMaxAngle
	opts.CloseTolerancePx = s.CloseTolerance
	opts.MinClosePoints = s.MinClosePoints
	opts.DragMinDistancePx = s.DragMinDistance
	opts.ResumeTolerancePx = s.ResumeTolerance
	opts.CursorAlpha = s.CursorSmoothing
	opts.Detect = edge.DefaultOptions().
		WithStrategy(edge.ParseStrategy(s.Strategy)).
		WithThinning(s.Thinning).
		WithBlockSize(s.BlockSize).
		WithModelFiles(s.ModelProto, s.ModelWeights)
	return opts
}

// Path returns the settings file location under the user config directory.
func Path() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(configDir, "contour-tracer", settingsFile)
}

// Load reads the settings from the user config directory.
func Load() Settings {
	return LoadFrom(Path())
}

// LoadFrom reads settings from a specific path. A missing or malformed
// file yields the defaults.
func LoadFrom(path string) Settings {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Default()
	}
	return s
}

// Save writes the settings to the user config directory.
func (s Settings) Save() error {
	return s.SaveTo(Path())
}

// SaveTo writes the settings to a specific path, creating directories as
// needed.
func (s Settings) SaveTo(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: encoding: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("settings: creating config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("settings: writing %s: %w", path, err)
	}
	return nil
}

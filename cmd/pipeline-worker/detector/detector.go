package detector

import (
	"context"
	"fmt"
	"io"

	"github.com/gridlens/inspector/common/config"
	"github.com/gridlens/inspector/common/logger"
)

// Detection is one detected object. Box is [x, y, w, h] in [0,1]
// coordinates normalized to the source image.
type Detection struct {
	Box        [4]float64 `json:"box"`
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
}

// Params are run-level detector overrides (confidence threshold, IoU,
// input size). Shapes vary per backend, so this stays an open map.
type Params map[string]any

// Detector is the inference capability consumed by the asset_detection
// step. Implementations must be safe for concurrent Detect calls: the
// underlying model resource is loaded once and read-only afterwards.
type Detector interface {
	Detect(ctx context.Context, image io.Reader, params Params) ([]Detection, error)
	Name() string
}

// InferenceError marks an unreadable image or a backend fault. The
// calling executor turns it into a failed step; it is never retried at
// this layer.
type InferenceError struct {
	Backend string
	Err     error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed (%s): %v", e.Backend, e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// Set holds every available backend, resolved per run by the name
// stored on the run row. Construction is cheap: the remote backend does
// no network IO until its first Detect.
type Set struct {
	backends    map[string]Detector
	defaultName string
}

// NewSet builds the backend set with cfg.Name as the default
func NewSet(cfg config.DetectorConfig, log *logger.Logger) *Set {
	return &Set{
		backends: map[string]Detector{
			"yolo_onnx": NewRemoteDetector(cfg, log),
			"stub":      NewStubDetector(),
		},
		defaultName: cfg.Name,
	}
}

// Resolve returns the backend for name, falling back to the configured
// default when name is empty.
func (s *Set) Resolve(name string) (Detector, error) {
	if name == "" {
		name = s.defaultName
	}
	det, ok := s.backends[name]
	if !ok {
		return nil, fmt.Errorf("unknown detector: %s", name)
	}
	return det, nil
}

// Float reads a numeric param, falling back when absent or mistyped
func (p Params) Float(key string, fallback float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return fallback
	}
}

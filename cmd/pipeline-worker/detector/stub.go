package detector

import (
	"context"
	"io"
)

// StubDetector returns fixed utility-asset detections. Useful for local
// development without a model server.
type StubDetector struct{}

// NewStubDetector creates a stub detector
func NewStubDetector() *StubDetector {
	return &StubDetector{}
}

// Name identifies the backend
func (d *StubDetector) Name() string {
	return "stub"
}

// Detect drains the image and returns canned detections
func (d *StubDetector) Detect(ctx context.Context, image io.Reader, params Params) ([]Detection, error) {
	if _, err := io.Copy(io.Discard, image); err != nil {
		return nil, &InferenceError{Backend: d.Name(), Err: err}
	}

	return []Detection{
		{Label: "pole", Confidence: 0.81, Box: [4]float64{0.12, 0.08, 0.23, 0.84}},
		{Label: "transformer", Confidence: 0.64, Box: [4]float64{0.40, 0.25, 0.22, 0.30}},
		{Label: "conductor", Confidence: 0.58, Box: [4]float64{0.05, 0.15, 0.90, 0.05}},
	}, nil
}

package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gridlens/inspector/cmd/pipeline-worker/detector"
)

// DetectionResult is the asset_detection step payload. Detector name and
// params are embedded so a stored run stays auditable after defaults
// change.
type DetectionResult struct {
	Detector   string               `json:"detector"`
	Params     json.RawMessage      `json:"params"`
	Count      int                  `json:"count"`
	Detections []detector.Detection `json:"detections"`
	OverlayKey string               `json:"overlay_key,omitempty"`
}

// assetDetection is the only executor that calls the detector port. The
// backend is resolved from the name frozen on the run row, so the stored
// payload always names the backend that actually ran. An InferenceError
// surfaces as a failed step, never a retried detect.
func (r *Registry) assetDetection(ctx context.Context, sc *StepContext) (any, error) {
	det, err := r.detectors.Resolve(sc.Run.DetectorName)
	if err != nil {
		return nil, err
	}

	obj, _, err := r.store.Get(ctx, sc.Photo.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("read photo object: %w", err)
	}
	data, err := io.ReadAll(obj)
	obj.Close()
	if err != nil {
		return nil, fmt.Errorf("read photo bytes: %w", err)
	}

	detections, err := det.Detect(ctx, bytes.NewReader(data), sc.Params)
	if err != nil {
		return nil, err
	}

	result := &DetectionResult{
		Detector:   det.Name(),
		Params:     sc.Run.DetectorParams,
		Count:      len(detections),
		Detections: detections,
	}
	// cap persisted payload size
	if len(result.Detections) > r.maxDetections {
		result.Detections = result.Detections[:r.maxDetections]
	}

	overlayBytes, contentType, err := r.renderer.Render(bytes.NewReader(data), detections)
	if err != nil {
		return nil, fmt.Errorf("render overlay: %w", err)
	}

	overlayKey := fmt.Sprintf("overlays/run_%s.jpg", sc.Run.ID)
	err = r.store.Put(ctx, overlayKey, bytes.NewReader(overlayBytes), int64(len(overlayBytes)), contentType)
	if err != nil {
		return nil, fmt.Errorf("store overlay: %w", err)
	}
	result.OverlayKey = overlayKey

	return result, nil
}

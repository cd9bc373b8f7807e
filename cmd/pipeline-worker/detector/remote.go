package detector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/gridlens/inspector/common/config"
	"github.com/gridlens/inspector/common/logger"
)

// RemoteDetector runs inference against an ONNX model server over HTTP.
// Model metadata is fetched lazily exactly once per process and is
// immutable afterwards, so concurrent Detect calls share it safely.
type RemoteDetector struct {
	endpoint string
	client   *http.Client
	log      *logger.Logger

	once     sync.Once
	metadata *modelMetadata
	loadErr  error
}

type modelMetadata struct {
	Model     string   `json:"model"`
	Labels    []string `json:"labels"`
	InputSize int      `json:"input_size"`
}

type detectResponse struct {
	Width      int `json:"width"`
	Height     int `json:"height"`
	Detections []struct {
		Label      string     `json:"label"`
		ClassID    int        `json:"class_id"`
		Confidence float64    `json:"confidence"`
		BoxXYXY    [4]float64 `json:"box_xyxy"`
	} `json:"detections"`
}

// NewRemoteDetector creates a detector backed by the configured model
// server. No network calls happen until the first Detect.
func NewRemoteDetector(cfg config.DetectorConfig, log *logger.Logger) *RemoteDetector {
	return &RemoteDetector{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: cfg.Timeout},
		log:      log,
	}
}

// Name identifies the backend
func (d *RemoteDetector) Name() string {
	return "yolo_onnx"
}

// Detect runs one inference round trip and maps the result into
// normalized [0,1] xywh boxes.
func (d *RemoteDetector) Detect(ctx context.Context, image io.Reader, params Params) ([]Detection, error) {
	meta, err := d.loadMetadata(ctx)
	if err != nil {
		return nil, &InferenceError{Backend: d.Name(), Err: err}
	}

	q := url.Values{}
	q.Set("model", meta.Model)
	q.Set("conf", strconv.FormatFloat(params.Float("conf", 0.25), 'f', -1, 64))
	q.Set("iou", strconv.FormatFloat(params.Float("iou", 0.45), 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		d.endpoint+"/v1/detect?"+q.Encode(), image)
	if err != nil {
		return nil, &InferenceError{Backend: d.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, &InferenceError{Backend: d.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &InferenceError{
			Backend: d.Name(),
			Err:     fmt.Errorf("model server returned %d: %s", resp.StatusCode, body),
		}
	}

	var parsed detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &InferenceError{Backend: d.Name(), Err: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.Width <= 0 || parsed.Height <= 0 {
		return nil, &InferenceError{Backend: d.Name(), Err: fmt.Errorf("invalid image dimensions %dx%d", parsed.Width, parsed.Height)}
	}

	w := float64(parsed.Width)
	h := float64(parsed.Height)
	out := make([]Detection, 0, len(parsed.Detections))
	for _, det := range parsed.Detections {
		label := det.Label
		if label == "" && det.ClassID >= 0 && det.ClassID < len(meta.Labels) {
			label = meta.Labels[det.ClassID]
		}
		out = append(out, Detection{
			Label:      label,
			Confidence: clamp01(det.Confidence),
			Box: [4]float64{
				clamp01(det.BoxXYXY[0] / w),
				clamp01(det.BoxXYXY[1] / h),
				clamp01((det.BoxXYXY[2] - det.BoxXYXY[0]) / w),
				clamp01((det.BoxXYXY[3] - det.BoxXYXY[1]) / h),
			},
		})
	}

	return out, nil
}

// loadMetadata fetches model metadata on first use. The sync.Once makes
// the load exactly-once per process even under concurrent detects; a
// load failure is sticky, matching a worker whose model never loaded.
func (d *RemoteDetector) loadMetadata(ctx context.Context) (*modelMetadata, error) {
	d.once.Do(func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"/v1/metadata", nil)
		if err != nil {
			d.loadErr = err
			return
		}

		resp, err := d.client.Do(req)
		if err != nil {
			d.loadErr = fmt.Errorf("fetch model metadata: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			d.loadErr = fmt.Errorf("model server metadata returned %d", resp.StatusCode)
			return
		}

		meta := &modelMetadata{}
		if err := json.NewDecoder(resp.Body).Decode(meta); err != nil {
			d.loadErr = fmt.Errorf("decode model metadata: %w", err)
			return
		}

		d.metadata = meta
		d.log.Info("model metadata loaded",
			"model", meta.Model,
			"labels", len(meta.Labels),
			"input_size", meta.InputSize)
	})

	return d.metadata, d.loadErr
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

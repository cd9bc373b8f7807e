package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gridlens/inspector/common/config"
	"github.com/gridlens/inspector/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func modelServer(t *testing.T, metadataCalls *int64, detect http.HandlerFunc) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/metadata", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(metadataCalls, 1)
		json.NewEncoder(w).Encode(map[string]any{
			"model":      "yolov8n",
			"labels":     []string{"pole", "transformer", "conductor"},
			"input_size": 640,
		})
	})
	mux.HandleFunc("/v1/detect", detect)
	return httptest.NewServer(mux)
}

func remoteDetector(endpoint string) *RemoteDetector {
	return NewRemoteDetector(config.DetectorConfig{
		Name:     "yolo_onnx",
		Endpoint: endpoint,
		Timeout:  5 * time.Second,
	}, logger.New("error", "json"))
}

func TestRemoteDetectNormalizesBoxes(t *testing.T) {
	var metadataCalls int64
	var gotQuery string
	var gotBody []byte

	srv := modelServer(t, &metadataCalls, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotBody, _ = io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(map[string]any{
			"width":  1000,
			"height": 500,
			"detections": []map[string]any{
				{"label": "pole", "class_id": 0, "confidence": 0.81, "box_xyxy": []float64{100, 50, 300, 450}},
				{"label": "", "class_id": 1, "confidence": 1.3, "box_xyxy": []float64{-20, 0, 500, 250}},
			},
		})
	})
	defer srv.Close()

	det := remoteDetector(srv.URL)
	out, err := det.Detect(context.Background(), strings.NewReader("jpegbytes"), Params{"conf": 0.4})
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, []byte("jpegbytes"), gotBody)
	assert.Contains(t, gotQuery, "model=yolov8n")
	assert.Contains(t, gotQuery, "conf=0.4")
	assert.Contains(t, gotQuery, "iou=0.45")

	// pixel xyxy mapped to normalized xywh
	assert.Equal(t, "pole", out[0].Label)
	assert.InDelta(t, 0.1, out[0].Box[0], 1e-9)
	assert.InDelta(t, 0.1, out[0].Box[1], 1e-9)
	assert.InDelta(t, 0.2, out[0].Box[2], 1e-9)
	assert.InDelta(t, 0.8, out[0].Box[3], 1e-9)

	// missing label resolved from metadata, values clamped to [0,1]
	assert.Equal(t, "transformer", out[1].Label)
	assert.Equal(t, 1.0, out[1].Confidence)
	assert.Equal(t, 0.0, out[1].Box[0])
}

func TestRemoteDetectMetadataLoadsOnce(t *testing.T) {
	var metadataCalls int64
	srv := modelServer(t, &metadataCalls, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"width": 100, "height": 100, "detections": []any{}})
	})
	defer srv.Close()

	det := remoteDetector(srv.URL)
	for i := 0; i < 3; i++ {
		_, err := det.Detect(context.Background(), bytes.NewReader(nil), Params{})
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), atomic.LoadInt64(&metadataCalls))
}

func TestRemoteDetectBackendFaultIsInferenceError(t *testing.T) {
	var metadataCalls int64
	srv := modelServer(t, &metadataCalls, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	})
	defer srv.Close()

	det := remoteDetector(srv.URL)
	_, err := det.Detect(context.Background(), bytes.NewReader(nil), Params{})
	require.Error(t, err)

	var infErr *InferenceError
	require.True(t, errors.As(err, &infErr))
	assert.Equal(t, "yolo_onnx", infErr.Backend)
	assert.Contains(t, infErr.Error(), "500")
}

func TestRemoteDetectMetadataFailureIsSticky(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	}))
	srv.Close() // immediately unreachable

	det := remoteDetector(srv.URL)
	_, err := det.Detect(context.Background(), bytes.NewReader(nil), Params{})
	require.Error(t, err)

	_, err2 := det.Detect(context.Background(), bytes.NewReader(nil), Params{})
	require.Error(t, err2)
	assert.Contains(t, err2.Error(), "fetch model metadata")
}

func TestSetResolvesBackends(t *testing.T) {
	set := NewSet(config.DetectorConfig{
		Name:     "yolo_onnx",
		Endpoint: "http://localhost:8500",
	}, logger.New("error", "json"))

	det, err := set.Resolve("stub")
	require.NoError(t, err)
	assert.Equal(t, "stub", det.Name())

	// empty name falls back to the configured default
	det, err = set.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "yolo_onnx", det.Name())

	_, err = set.Resolve("tesseract")
	require.Error(t, err)
}

func TestParamsFloat(t *testing.T) {
	p := Params{"conf": 0.3, "input_size": 640, "model": "yolov8n"}
	assert.Equal(t, 0.3, p.Float("conf", 0.25))
	assert.Equal(t, 640.0, p.Float("input_size", 320))
	assert.Equal(t, 0.45, p.Float("iou", 0.45))
	assert.Equal(t, 0.25, p.Float("model", 0.25))
}

package service

import (
	"encoding/json"
	"testing"

	"github.com/gridlens/inspector/common/config"
	"github.com/gridlens/inspector/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRunService(t *testing.T) *RunService {
	t.Helper()

	cfg, err := config.Load("api-test")
	require.NoError(t, err)
	return &RunService{cfg: cfg, log: logger.New("error", "json")}
}

func TestMergeParamsNoOverrides(t *testing.T) {
	svc := testRunService(t)

	merged, err := svc.mergeParams(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"conf":0.25,"iou":0.45,"input_size":640}`, string(merged))

	merged, err = svc.mergeParams(&CreateRunRequest{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"conf":0.25,"iou":0.45,"input_size":640}`, string(merged))
}

func TestMergeParamsOverridesWin(t *testing.T) {
	svc := testRunService(t)

	merged, err := svc.mergeParams(&CreateRunRequest{
		DetectorParams: json.RawMessage(`{"conf":0.5,"half":true}`),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"conf":0.5,"iou":0.45,"input_size":640,"half":true}`, string(merged))
}

func TestMergeParamsNullRemovesKey(t *testing.T) {
	svc := testRunService(t)

	merged, err := svc.mergeParams(&CreateRunRequest{
		DetectorParams: json.RawMessage(`{"iou":null}`),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"conf":0.25,"input_size":640}`, string(merged))
}

func TestMergeParamsRejectsMalformedOverrides(t *testing.T) {
	svc := testRunService(t)

	_, err := svc.mergeParams(&CreateRunRequest{
		DetectorParams: json.RawMessage(`not-json`),
	})
	require.Error(t, err)
}

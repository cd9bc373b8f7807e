package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gridlens/inspector/cmd/pipeline-worker/detector"
	"github.com/gridlens/inspector/cmd/pipeline-worker/overlay"
	"github.com/gridlens/inspector/common/config"
	"github.com/gridlens/inspector/common/logger"
	"github.com/gridlens/inspector/common/models"
	"github.com/gridlens/inspector/common/pipeline"
	"github.com/gridlens/inspector/common/storage"
)

// ObjectStore is the slice of the object store the executors need
type ObjectStore interface {
	Get(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error)
	Stat(ctx context.Context, key string) (storage.ObjectInfo, error)
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
}

// StepContext carries everything a step executor may consume: the photo
// under inspection, run-level detector configuration, and the details of
// every prior step. Executors never touch run or step rows.
type StepContext struct {
	Photo  *models.Photo
	Run    *models.Run
	Params detector.Params

	// Prior holds completed step details keyed by step name
	Prior map[string]json.RawMessage

	Log *logger.Logger
}

// PriorAs unmarshals a prior step's details into out
func (sc *StepContext) PriorAs(name string, out any) error {
	raw, ok := sc.Prior[name]
	if !ok {
		return fmt.Errorf("no details for prior step %s", name)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal %s details: %w", name, err)
	}
	return nil
}

// Executor runs one pipeline stage and returns its JSON-serializable
// result. A returned error fails the step and stops the run.
type Executor func(ctx context.Context, sc *StepContext) (any, error)

// DetectorResolver resolves the inference backend recorded on a run
type DetectorResolver interface {
	Resolve(name string) (detector.Detector, error)
}

// Registry maps step names to executors
type Registry struct {
	store         ObjectStore
	detectors     DetectorResolver
	renderer      overlay.Renderer
	gate          *GateEvaluator
	maxDetections int
	log           *logger.Logger
}

// NewRegistry wires the executor set. The detector backends are shared
// and read-only after their lazy init; the registry itself is immutable.
func NewRegistry(store ObjectStore, detectors DetectorResolver, renderer overlay.Renderer, cfg config.PipelineConfig, log *logger.Logger) (*Registry, error) {
	gate, err := NewGateEvaluator(cfg.GateRule)
	if err != nil {
		return nil, fmt.Errorf("compile gate rule: %w", err)
	}

	maxDet := cfg.MaxDetections
	if maxDet <= 0 {
		maxDet = 200
	}

	return &Registry{
		store:         store,
		detectors:     detectors,
		renderer:      renderer,
		gate:          gate,
		maxDetections: maxDet,
		log:           log,
	}, nil
}

// Executor resolves a step name to its executor
func (r *Registry) Executor(name string) (Executor, bool) {
	switch name {
	case pipeline.StepIngest:
		return r.ingest, true
	case pipeline.StepExtractEXIF:
		return r.extractEXIF, true
	case pipeline.StepUtilityGate:
		return r.utilityGate, true
	case pipeline.StepAssetDetection:
		return r.assetDetection, true
	case pipeline.StepConditionAssessment:
		return r.conditionAssessment, true
	case pipeline.StepSummary:
		return r.summary, true
	default:
		return nil, false
	}
}

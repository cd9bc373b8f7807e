package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
	"github.com/gridlens/inspector/common/config"
	"github.com/gridlens/inspector/common/logger"
	"github.com/gridlens/inspector/common/models"
	"github.com/gridlens/inspector/common/pipeline"
	"github.com/gridlens/inspector/common/queue"
	"github.com/gridlens/inspector/common/repository"
	"github.com/gridlens/inspector/common/storage"
)

// ErrOverlayNotReady is returned while the asset_detection step has not
// completed for a run.
var ErrOverlayNotReady = errors.New("overlay not ready")

// CreateRunRequest carries optional per-run detector overrides
type CreateRunRequest struct {
	DetectorName   string          `json:"detector_name,omitempty"`
	DetectorParams json.RawMessage `json:"detector_params,omitempty"`
}

// RunService creates runs and serves their status to pollers
type RunService struct {
	runs    *repository.RunRepository
	photos  *repository.PhotoRepository
	queue   queue.Queue
	storage *storage.Store
	cfg     *config.Config
	log     *logger.Logger
}

// NewRunService creates a new run service
func NewRunService(runs *repository.RunRepository, photos *repository.PhotoRepository, q queue.Queue, store *storage.Store, cfg *config.Config, log *logger.Logger) *RunService {
	return &RunService{
		runs:    runs,
		photos:  photos,
		queue:   q,
		storage: store,
		cfg:     cfg,
		log:     log,
	}
}

// CreateRun snapshots the pipeline definition into a pending step set,
// persists run and steps atomically, and enqueues exactly one task
// carrying only the run id. The snapshot is read back from the state
// store at execution time, never from the task payload.
func (s *RunService) CreateRun(ctx context.Context, photoID uuid.UUID, req *CreateRunRequest) (*models.Run, error) {
	photo, err := s.photos.GetByID(ctx, photoID)
	if err != nil {
		return nil, err
	}

	detectorName := s.cfg.Detector.Name
	if req != nil && req.DetectorName != "" {
		detectorName = req.DetectorName
	}

	params, err := s.mergeParams(req)
	if err != nil {
		return nil, err
	}

	run := &models.Run{
		ID:             uuid.New(),
		PhotoID:        photo.ID,
		Status:         models.RunQueued,
		DetectorName:   detectorName,
		DetectorParams: params,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.runs.CreateWithSteps(ctx, run, pipeline.Snapshot()); err != nil {
		return nil, err
	}

	task, err := json.Marshal(map[string]string{"run_id": run.ID.String()})
	if err != nil {
		return nil, fmt.Errorf("marshal task: %w", err)
	}
	if err := s.queue.Publish(ctx, run.ID.String(), task); err != nil {
		return nil, fmt.Errorf("enqueue run: %w", err)
	}

	s.log.Info("run created",
		"run_id", run.ID,
		"photo_id", photo.ID,
		"detector", detectorName,
		"steps", pipeline.Len())

	return run, nil
}

// mergeParams merge-patches request overrides onto the configured
// defaults. Params are immutable after run creation.
func (s *RunService) mergeParams(req *CreateRunRequest) (json.RawMessage, error) {
	defaults, err := json.Marshal(s.cfg.DefaultDetectorParams())
	if err != nil {
		return nil, fmt.Errorf("marshal default params: %w", err)
	}

	if req == nil || len(req.DetectorParams) == 0 {
		return defaults, nil
	}

	merged, err := jsonpatch.MergePatch(defaults, req.DetectorParams)
	if err != nil {
		return nil, fmt.Errorf("merge detector params: %w", err)
	}

	return merged, nil
}

// GetRun returns a consistent snapshot of the run and its ordered steps
func (s *RunService) GetRun(ctx context.Context, runID uuid.UUID) (*models.RunWithSteps, error) {
	return s.runs.GetWithSteps(ctx, runID)
}

// ListForPhoto lists a photo's runs, newest first, without steps
func (s *RunService) ListForPhoto(ctx context.Context, photoID uuid.UUID, limit int) ([]*models.Run, error) {
	if _, err := s.photos.GetByID(ctx, photoID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.runs.ListByPhoto(ctx, photoID, limit)
}

// Overlay streams the rendered overlay image for a run. It is only
// available once the asset_detection step has completed.
func (s *RunService) Overlay(ctx context.Context, runID uuid.UUID) (io.ReadCloser, string, error) {
	run, err := s.runs.GetWithSteps(ctx, runID)
	if err != nil {
		return nil, "", err
	}

	var overlayKey string
	for _, step := range run.Steps {
		if step.Name != pipeline.StepAssetDetection {
			continue
		}
		if step.Status != models.StepComplete {
			return nil, "", ErrOverlayNotReady
		}
		var details struct {
			OverlayKey string `json:"overlay_key"`
		}
		if err := json.Unmarshal(step.Details, &details); err != nil {
			return nil, "", fmt.Errorf("parse detection details: %w", err)
		}
		overlayKey = details.OverlayKey
	}
	if overlayKey == "" {
		return nil, "", ErrOverlayNotReady
	}

	obj, info, err := s.storage.Get(ctx, overlayKey)
	if err != nil {
		return nil, "", fmt.Errorf("read overlay: %w", err)
	}

	return obj, info.ContentType, nil
}

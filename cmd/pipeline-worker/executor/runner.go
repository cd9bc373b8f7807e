package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gridlens/inspector/cmd/pipeline-worker/detector"
	"github.com/gridlens/inspector/cmd/pipeline-worker/steps"
	"github.com/gridlens/inspector/common/logger"
	"github.com/gridlens/inspector/common/models"
)

// RunStore is the run-level slice of the state store
type RunStore interface {
	ClaimQueued(ctx context.Context, runID uuid.UUID) error
	GetWithSteps(ctx context.Context, runID uuid.UUID) (*models.RunWithSteps, error)
	Finish(ctx context.Context, runID uuid.UUID, status models.RunStatus, at time.Time) error
}

// StepStore is the step-level slice of the state store
type StepStore interface {
	MarkRunning(ctx context.Context, runID uuid.UUID, seq int, at time.Time) error
	MarkComplete(ctx context.Context, runID uuid.UUID, seq int, details json.RawMessage, at time.Time) error
	MarkFailed(ctx context.Context, runID uuid.UUID, seq int, details json.RawMessage, at time.Time) error
}

// PhotoStore resolves the photo a run inspects
type PhotoStore interface {
	GetByID(ctx context.Context, photoID uuid.UUID) (*models.Photo, error)
}

// ExecutorResolver maps step names to executors
type ExecutorResolver interface {
	Executor(name string) (steps.Executor, bool)
}

// StepFailure wraps an executor fault with the step that raised it
type StepFailure struct {
	Step string
	Err  error
}

func (e *StepFailure) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
}

func (e *StepFailure) Unwrap() error {
	return e.Err
}

// Runner owns run execution once a task has been claimed. Steps advance
// strictly in sequence order; the first failure freezes the remainder of
// the pipeline in pending.
type Runner struct {
	runs      RunStore
	stepStore StepStore
	photos    PhotoStore
	registry  ExecutorResolver
	log       *logger.Logger
}

// NewRunner creates a run executor
func NewRunner(runs RunStore, stepStore StepStore, photos PhotoStore, registry ExecutorResolver, log *logger.Logger) *Runner {
	return &Runner{
		runs:      runs,
		stepStore: stepStore,
		photos:    photos,
		registry:  registry,
		log:       log,
	}
}

// Handle executes one delivered task. Duplicate deliveries are detected
// by the queued -> running compare-and-set and dropped without side
// effects; the claim grants exclusive write ownership of the run.
func (r *Runner) Handle(ctx context.Context, runID uuid.UUID) error {
	log := r.log.WithRunID(runID.String())

	if err := r.runs.ClaimQueued(ctx, runID); err != nil {
		switch {
		case errors.Is(err, models.ErrDuplicateDispatch):
			log.Debug("duplicate task delivery, discarding")
			return nil
		case errors.Is(err, models.ErrNotFound):
			log.Warn("task for unknown run, discarding")
			return nil
		default:
			return fmt.Errorf("claim run: %w", err)
		}
	}

	log.Info("run claimed")

	run, err := r.runs.GetWithSteps(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}

	photo, err := r.photos.GetByID(ctx, run.PhotoID)
	if err != nil {
		return r.failRun(ctx, run, 0, fmt.Errorf("load photo: %w", err))
	}

	params := detector.Params{}
	if len(run.DetectorParams) > 0 {
		if err := json.Unmarshal(run.DetectorParams, &params); err != nil {
			return r.failRun(ctx, run, 0, fmt.Errorf("parse detector params: %w", err))
		}
	}

	sc := &steps.StepContext{
		Photo:  photo,
		Run:    &run.Run,
		Params: params,
		Prior:  make(map[string]json.RawMessage, len(run.Steps)),
		Log:    log,
	}
	for _, step := range run.Steps {
		if step.Status == models.StepComplete {
			sc.Prior[step.Name] = step.Details
		}
	}

	for _, step := range run.Steps {
		if step.Status != models.StepPending {
			continue
		}

		if err := r.executeStep(ctx, sc, step); err != nil {
			failure := &StepFailure{Step: step.Name, Err: err}
			log.Warn("pipeline stopped", "step", step.Name, "error", err)
			return r.failRun(ctx, run, step.Seq, failure)
		}
	}

	if err := r.runs.Finish(ctx, runID, models.RunDone, time.Now().UTC()); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	log.Info("run complete")
	return nil
}

// executeStep advances one step through running to complete, storing its
// result, or returns the executor fault.
func (r *Runner) executeStep(ctx context.Context, sc *steps.StepContext, step models.Step) error {
	log := sc.Log.WithStep(step.Name)

	exec, ok := r.registry.Executor(step.Name)
	if !ok {
		return fmt.Errorf("no executor for step %s", step.Name)
	}

	if err := r.stepStore.MarkRunning(ctx, step.RunID, step.Seq, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark step running: %w", err)
	}
	log.Info("step started", "seq", step.Seq)

	result, err := exec(ctx, sc)
	if err != nil {
		return err
	}

	details, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal step result: %w", err)
	}

	if err := r.stepStore.MarkComplete(ctx, step.RunID, step.Seq, details, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark step complete: %w", err)
	}

	sc.Prior[step.Name] = details
	log.Info("step complete", "seq", step.Seq)
	return nil
}

// failRun records the failure on the step that raised it, moves the run
// to failed, and leaves every later step pending. The step may still be
// pending when setup failed before its executor ran; MarkFailed accepts
// that so the error payload is always pollable.
func (r *Runner) failRun(ctx context.Context, run *models.RunWithSteps, seq int, cause error) error {
	now := time.Now().UTC()

	payload, err := json.Marshal(map[string]string{"error": cause.Error()})
	if err != nil {
		payload = json.RawMessage(`{"error":"unserializable failure"}`)
	}

	if err := r.stepStore.MarkFailed(ctx, run.ID, seq, payload, now); err != nil {
		r.log.Error("failed to record step failure", "run_id", run.ID, "seq", seq, "error", err)
	}

	if err := r.runs.Finish(ctx, run.ID, models.RunFailed, now); err != nil {
		return fmt.Errorf("mark run failed: %w", err)
	}

	return nil
}

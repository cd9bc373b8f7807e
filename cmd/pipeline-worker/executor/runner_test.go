package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gridlens/inspector/cmd/pipeline-worker/steps"
	"github.com/gridlens/inspector/common/logger"
	"github.com/gridlens/inspector/common/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memState is an in-memory state store enforcing the same conditional
// transition guards as the SQL repositories.
type memState struct {
	mu     sync.Mutex
	run    models.Run
	steps  []models.Step
	photo  models.Photo
	writes int
}

func newMemState(stepNames ...string) *memState {
	photoID := uuid.New()
	runID := uuid.New()

	s := &memState{
		photo: models.Photo{
			ID:        photoID,
			Filename:  "pole.jpg",
			ObjectKey: "uploads/pole.jpg",
		},
		run: models.Run{
			ID:             runID,
			PhotoID:        photoID,
			Status:         models.RunQueued,
			DetectorName:   "stub",
			DetectorParams: json.RawMessage(`{"conf":0.25}`),
			CreatedAt:      time.Now().UTC(),
		},
	}
	for i, name := range stepNames {
		s.steps = append(s.steps, models.Step{
			RunID:   runID,
			Seq:     i,
			Name:    name,
			Status:  models.StepPending,
			Details: json.RawMessage(`{}`),
		})
	}
	return s
}

func (s *memState) ClaimQueued(ctx context.Context, runID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if runID != s.run.ID {
		return fmt.Errorf("run %s: %w", runID, models.ErrNotFound)
	}
	if s.run.Status != models.RunQueued {
		return fmt.Errorf("run %s: %w", runID, models.ErrDuplicateDispatch)
	}
	s.run.Status = models.RunRunning
	s.writes++
	return nil
}

func (s *memState) GetWithSteps(ctx context.Context, runID uuid.UUID) (*models.RunWithSteps, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if runID != s.run.ID {
		return nil, fmt.Errorf("run %s: %w", runID, models.ErrNotFound)
	}
	out := &models.RunWithSteps{Run: s.run}
	out.Steps = append(out.Steps, s.steps...)
	return out, nil
}

func (s *memState) Finish(ctx context.Context, runID uuid.UUID, status models.RunStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run.Status != models.RunRunning {
		return fmt.Errorf("run %s not running", runID)
	}
	s.run.Status = status
	s.run.CompletedAt = &at
	s.writes++
	return nil
}

func (s *memState) transition(seq int, to models.StepStatus, details json.RawMessage, from ...models.StepStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq < 0 || seq >= len(s.steps) {
		return fmt.Errorf("no step %d", seq)
	}
	allowed := false
	for _, status := range from {
		if s.steps[seq].Status == status {
			allowed = true
		}
	}
	if !allowed {
		return fmt.Errorf("step %d is %s, refusing transition to %s", seq, s.steps[seq].Status, to)
	}
	s.steps[seq].Status = to
	if details != nil {
		s.steps[seq].Details = details
	}
	s.writes++
	return nil
}

func (s *memState) MarkRunning(ctx context.Context, runID uuid.UUID, seq int, at time.Time) error {
	return s.transition(seq, models.StepRunning, nil, models.StepPending)
}

func (s *memState) MarkComplete(ctx context.Context, runID uuid.UUID, seq int, details json.RawMessage, at time.Time) error {
	return s.transition(seq, models.StepComplete, details, models.StepRunning)
}

func (s *memState) MarkFailed(ctx context.Context, runID uuid.UUID, seq int, details json.RawMessage, at time.Time) error {
	return s.transition(seq, models.StepFailed, details, models.StepPending, models.StepRunning)
}

func (s *memState) GetByID(ctx context.Context, photoID uuid.UUID) (*models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if photoID != s.photo.ID {
		return nil, fmt.Errorf("photo %s: %w", photoID, models.ErrNotFound)
	}
	photo := s.photo
	return &photo, nil
}

// fakeRegistry maps step names to canned executors
type fakeRegistry map[string]steps.Executor

func (r fakeRegistry) Executor(name string) (steps.Executor, bool) {
	exec, ok := r[name]
	return exec, ok
}

func okExecutor(name string) steps.Executor {
	return func(ctx context.Context, sc *steps.StepContext) (any, error) {
		return map[string]string{"ok": name}, nil
	}
}

func testRunner(state *memState, registry fakeRegistry) *Runner {
	return NewRunner(state, state, state, registry, logger.New("error", "json"))
}

func TestRunnerHappyPath(t *testing.T) {
	state := newMemState("ingest", "extract_exif", "summary")
	registry := fakeRegistry{
		"ingest":       okExecutor("ingest"),
		"extract_exif": okExecutor("extract_exif"),
		"summary":      okExecutor("summary"),
	}

	err := testRunner(state, registry).Handle(context.Background(), state.run.ID)
	require.NoError(t, err)

	assert.Equal(t, models.RunDone, state.run.Status)
	require.NotNil(t, state.run.CompletedAt)
	for _, step := range state.steps {
		assert.Equal(t, models.StepComplete, step.Status, "step %s", step.Name)
		assert.JSONEq(t, fmt.Sprintf(`{"ok":%q}`, step.Name), string(step.Details))
	}
}

func TestRunnerFailFastFreezesTail(t *testing.T) {
	state := newMemState("ingest", "extract_exif", "asset_detection", "summary")
	registry := fakeRegistry{
		"ingest":       okExecutor("ingest"),
		"extract_exif": okExecutor("extract_exif"),
		"asset_detection": func(ctx context.Context, sc *steps.StepContext) (any, error) {
			return nil, errors.New("model exploded")
		},
		"summary": okExecutor("summary"),
	}

	err := testRunner(state, registry).Handle(context.Background(), state.run.ID)
	require.NoError(t, err)

	assert.Equal(t, models.RunFailed, state.run.Status)
	require.NotNil(t, state.run.CompletedAt)

	assert.Equal(t, models.StepComplete, state.steps[0].Status)
	assert.Equal(t, models.StepComplete, state.steps[1].Status)
	assert.Equal(t, models.StepFailed, state.steps[2].Status)
	assert.Contains(t, string(state.steps[2].Details), "model exploded")

	// everything after the failure point stays pending forever
	assert.Equal(t, models.StepPending, state.steps[3].Status)
	assert.JSONEq(t, `{}`, string(state.steps[3].Details))
}

func TestRunnerDuplicateDeliveryHasNoSideEffects(t *testing.T) {
	state := newMemState("ingest")
	registry := fakeRegistry{"ingest": okExecutor("ingest")}
	runner := testRunner(state, registry)

	require.NoError(t, runner.Handle(context.Background(), state.run.ID))
	assert.Equal(t, models.RunDone, state.run.Status)

	writesAfterFirst := state.writes
	doneAt := *state.run.CompletedAt

	// redelivery of the same task: the claim loses and nothing changes
	require.NoError(t, runner.Handle(context.Background(), state.run.ID))
	assert.Equal(t, writesAfterFirst, state.writes)
	assert.Equal(t, models.RunDone, state.run.Status)
	assert.Equal(t, doneAt, *state.run.CompletedAt)
}

func TestRunnerClaimRaceHasSingleWinner(t *testing.T) {
	state := newMemState("ingest")
	executed := 0
	registry := fakeRegistry{
		"ingest": func(ctx context.Context, sc *steps.StepContext) (any, error) {
			executed++
			return map[string]bool{"ok": true}, nil
		},
	}
	runner := testRunner(state, registry)

	// two deliveries of the same task
	require.NoError(t, runner.Handle(context.Background(), state.run.ID))
	require.NoError(t, runner.Handle(context.Background(), state.run.ID))

	assert.Equal(t, 1, executed)
}

func TestRunnerUnknownRunIsDiscarded(t *testing.T) {
	state := newMemState("ingest")
	registry := fakeRegistry{"ingest": okExecutor("ingest")}

	err := testRunner(state, registry).Handle(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, models.RunQueued, state.run.Status)
	assert.Zero(t, state.writes)
}

func TestRunnerUnknownStepNameFailsRun(t *testing.T) {
	state := newMemState("ingest", "mystery_step")
	registry := fakeRegistry{"ingest": okExecutor("ingest")}

	err := testRunner(state, registry).Handle(context.Background(), state.run.ID)
	require.NoError(t, err)

	assert.Equal(t, models.RunFailed, state.run.Status)
	assert.Equal(t, models.StepComplete, state.steps[0].Status)
	assert.Equal(t, models.StepFailed, state.steps[1].Status)
	assert.Contains(t, string(state.steps[1].Details), "no executor")
}

func TestRunnerSetupFailureRecordsStepError(t *testing.T) {
	state := newMemState("ingest", "summary")
	state.photo.ID = uuid.New() // photo row is gone
	registry := fakeRegistry{
		"ingest":  okExecutor("ingest"),
		"summary": okExecutor("summary"),
	}

	err := testRunner(state, registry).Handle(context.Background(), state.run.ID)
	require.NoError(t, err)

	// the failure lands on the first step even though it never started
	assert.Equal(t, models.RunFailed, state.run.Status)
	assert.Equal(t, models.StepFailed, state.steps[0].Status)
	assert.Contains(t, string(state.steps[0].Details), "load photo")
	assert.Equal(t, models.StepPending, state.steps[1].Status)
}

func TestRunnerBadParamsRecordStepError(t *testing.T) {
	state := newMemState("ingest")
	state.run.DetectorParams = json.RawMessage(`not-json`)
	registry := fakeRegistry{"ingest": okExecutor("ingest")}

	err := testRunner(state, registry).Handle(context.Background(), state.run.ID)
	require.NoError(t, err)

	assert.Equal(t, models.RunFailed, state.run.Status)
	assert.Equal(t, models.StepFailed, state.steps[0].Status)
	assert.Contains(t, string(state.steps[0].Details), "parse detector params")
}

func TestRunnerPriorDetailsFlowDownstream(t *testing.T) {
	state := newMemState("ingest", "summary")
	registry := fakeRegistry{
		"ingest": okExecutor("ingest"),
		"summary": func(ctx context.Context, sc *steps.StepContext) (any, error) {
			var prior map[string]string
			if err := sc.PriorAs("ingest", &prior); err != nil {
				return nil, err
			}
			return map[string]string{"saw": prior["ok"]}, nil
		},
	}

	err := testRunner(state, registry).Handle(context.Background(), state.run.ID)
	require.NoError(t, err)

	assert.Equal(t, models.RunDone, state.run.Status)
	assert.JSONEq(t, `{"saw":"ingest"}`, string(state.steps[1].Details))
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gridlens/inspector/common/db"
	"github.com/gridlens/inspector/common/models"
)

// StepRepository handles database operations for run steps. Every write
// is a single-row conditional update guarded on the current status, so
// a terminal step is never overwritten and a step never regresses.
type StepRepository struct {
	db *db.DB
}

// NewStepRepository creates a new step repository
func NewStepRepository(database *db.DB) *StepRepository {
	return &StepRepository{db: database}
}

// MarkRunning transitions a pending step to running
func (r *StepRepository) MarkRunning(ctx context.Context, runID uuid.UUID, seq int, at time.Time) error {
	return r.transition(ctx, runID, seq, models.StepPending, models.StepRunning, nil, at)
}

// MarkComplete transitions a running step to complete with its result
func (r *StepRepository) MarkComplete(ctx context.Context, runID uuid.UUID, seq int, details json.RawMessage, at time.Time) error {
	return r.transition(ctx, runID, seq, models.StepRunning, models.StepComplete, details, at)
}

// MarkFailed moves a step to failed with an error payload. Unlike the
// other transitions it accepts a pending step too: a run can fail before
// its next step ever started, and the failure must still be visible on
// the step row.
func (r *StepRepository) MarkFailed(ctx context.Context, runID uuid.UUID, seq int, details json.RawMessage, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE steps
		SET status = $3, details = $4, updated_at = $5
		WHERE run_id = $1 AND seq = $2 AND status IN ($6, $7)
	`, runID, seq, models.StepFailed, details, at, models.StepPending, models.StepRunning)
	if err != nil {
		return fmt.Errorf("failed to update step %d: %w", seq, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("step %d of run %s is terminal, refusing transition to %s", seq, runID, models.StepFailed)
	}

	return nil
}

func (r *StepRepository) transition(ctx context.Context, runID uuid.UUID, seq int, from, to models.StepStatus, details json.RawMessage, at time.Time) error {
	var tag interface{ RowsAffected() int64 }
	var err error

	if details == nil {
		tag, err = r.db.Exec(ctx, `
			UPDATE steps
			SET status = $3, updated_at = $4
			WHERE run_id = $1 AND seq = $2 AND status = $5
		`, runID, seq, to, at, from)
	} else {
		tag, err = r.db.Exec(ctx, `
			UPDATE steps
			SET status = $3, details = $4, updated_at = $5
			WHERE run_id = $1 AND seq = $2 AND status = $6
		`, runID, seq, to, details, at, from)
	}
	if err != nil {
		return fmt.Errorf("failed to update step %d: %w", seq, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("step %d of run %s is not %s, refusing transition to %s", seq, runID, from, to)
	}

	return nil
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gridlens/inspector/common/db"
	"github.com/gridlens/inspector/common/models"
	"github.com/jackc/pgx/v5"
)

// RunRepository handles database operations for pipeline runs
type RunRepository struct {
	db *db.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(database *db.DB) *RunRepository {
	return &RunRepository{db: database}
}

// CreateWithSteps inserts a run and its full pending step set in one
// transaction. A run with zero steps or a step without a run never
// exists.
func (r *RunRepository) CreateWithSteps(ctx context.Context, run *models.Run, stepNames []string) error {
	if len(stepNames) == 0 {
		return fmt.Errorf("run must have at least one step")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create run: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO runs (id, photo_id, status, detector_name, detector_params, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, run.ID, run.PhotoID, run.Status, run.DetectorName, run.DetectorParams, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	for seq, name := range stepNames {
		_, err = tx.Exec(ctx, `
			INSERT INTO steps (run_id, seq, name, status, details, updated_at)
			VALUES ($1, $2, $3, $4, '{}', $5)
		`, run.ID, seq, name, models.StepPending, run.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create step %s: %w", name, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create run: %w", err)
	}

	return nil
}

// GetByID retrieves a run by its ID
func (r *RunRepository) GetByID(ctx context.Context, runID uuid.UUID) (*models.Run, error) {
	run := &models.Run{}
	err := r.db.QueryRow(ctx, `
		SELECT id, photo_id, status, detector_name, detector_params, created_at, completed_at
		FROM runs
		WHERE id = $1
	`, runID).Scan(
		&run.ID,
		&run.PhotoID,
		&run.Status,
		&run.DetectorName,
		&run.DetectorParams,
		&run.CreatedAt,
		&run.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// GetWithSteps returns the run and its ordered steps from a single
// repeatable-read transaction, so a poller never sees a step list whose
// length or ordering shifts mid-read.
func (r *RunRepository) GetWithSteps(ctx context.Context, runID uuid.UUID) (*models.RunWithSteps, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("begin run read: %w", err)
	}
	defer tx.Rollback(ctx)

	result := &models.RunWithSteps{}
	err = tx.QueryRow(ctx, `
		SELECT id, photo_id, status, detector_name, detector_params, created_at, completed_at
		FROM runs
		WHERE id = $1
	`, runID).Scan(
		&result.ID,
		&result.PhotoID,
		&result.Status,
		&result.DetectorName,
		&result.DetectorParams,
		&result.CreatedAt,
		&result.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	rows, err := tx.Query(ctx, `
		SELECT run_id, seq, name, status, details, updated_at
		FROM steps
		WHERE run_id = $1
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		step := models.Step{}
		err := rows.Scan(
			&step.RunID,
			&step.Seq,
			&step.Name,
			&step.Status,
			&step.Details,
			&step.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		result.Steps = append(result.Steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating steps: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit run read: %w", err)
	}

	return result, nil
}

// ListByPhoto retrieves runs for a photo, newest first, without steps
func (r *RunRepository) ListByPhoto(ctx context.Context, photoID uuid.UUID, limit int) ([]*models.Run, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, photo_id, status, detector_name, detector_params, created_at, completed_at
		FROM runs
		WHERE photo_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, photoID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run := &models.Run{}
		err := rows.Scan(
			&run.ID,
			&run.PhotoID,
			&run.Status,
			&run.DetectorName,
			&run.DetectorParams,
			&run.CreatedAt,
			&run.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// ClaimQueued performs the queued -> running ownership transition. The
// conditional update is the sole concurrency guard against duplicate
// task delivery: exactly one worker wins, every other delivery observes
// ErrDuplicateDispatch and must exit without side effects.
func (r *RunRepository) ClaimQueued(ctx context.Context, runID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE runs
		SET status = $2
		WHERE id = $1 AND status = $3
	`, runID, models.RunRunning, models.RunQueued)
	if err != nil {
		return fmt.Errorf("failed to claim run: %w", err)
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	// Lost the claim; distinguish a missing run from a duplicate task.
	if _, err := r.GetByID(ctx, runID); err != nil {
		return err
	}
	return fmt.Errorf("run %s: %w", runID, models.ErrDuplicateDispatch)
}

// Finish moves a running run to its terminal state and stamps
// completed_at. Terminal states are never overwritten: the update only
// applies while the run is still running.
func (r *RunRepository) Finish(ctx context.Context, runID uuid.UUID, status models.RunStatus, at time.Time) error {
	if !models.RunRunning.CanTransition(status) {
		return fmt.Errorf("finish requires a terminal status, got %s", status)
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE runs
		SET status = $2, completed_at = $3
		WHERE id = $1 AND status = $4
	`, runID, status, at, models.RunRunning)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s not running, refusing transition to %s", runID, status)
	}

	return nil
}

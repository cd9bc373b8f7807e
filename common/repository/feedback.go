package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/gridlens/inspector/common/db"
	"github.com/gridlens/inspector/common/models"
)

// FeedbackRepository handles database operations for run feedback
type FeedbackRepository struct {
	db *db.DB
}

// NewFeedbackRepository creates a new feedback repository
func NewFeedbackRepository(database *db.DB) *FeedbackRepository {
	return &FeedbackRepository{db: database}
}

// Create inserts a feedback record
func (r *FeedbackRepository) Create(ctx context.Context, fb *models.Feedback) error {
	reasons, err := json.Marshal(fb.Reasons)
	if err != nil {
		return fmt.Errorf("marshal reasons: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO feedback (id, run_id, correct, reasons, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, fb.ID, fb.RunID, fb.Correct, reasons, fb.Notes, fb.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create feedback: %w", err)
	}

	return nil
}

// ListByRun retrieves feedback for a run, newest first
func (r *FeedbackRepository) ListByRun(ctx context.Context, runID uuid.UUID) ([]*models.Feedback, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, run_id, correct, reasons, notes, created_at
		FROM feedback
		WHERE run_id = $1
		ORDER BY created_at DESC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	var items []*models.Feedback
	for rows.Next() {
		fb := &models.Feedback{}
		var reasons []byte
		err := rows.Scan(&fb.ID, &fb.RunID, &fb.Correct, &reasons, &fb.Notes, &fb.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		if err := json.Unmarshal(reasons, &fb.Reasons); err != nil {
			return nil, fmt.Errorf("unmarshal reasons: %w", err)
		}
		items = append(items, fb)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feedback: %w", err)
	}

	return items, nil
}

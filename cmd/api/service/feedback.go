package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gridlens/inspector/common/logger"
	"github.com/gridlens/inspector/common/models"
	"github.com/gridlens/inspector/common/repository"
)

// FeedbackService records post-hoc verdicts on runs. It is independent
// of the run state machine by design: feedback on a failed or done run
// never changes its status.
type FeedbackService struct {
	feedback *repository.FeedbackRepository
	runs     *repository.RunRepository
	log      *logger.Logger
}

// NewFeedbackService creates a new feedback service
func NewFeedbackService(feedback *repository.FeedbackRepository, runs *repository.RunRepository, log *logger.Logger) *FeedbackService {
	return &FeedbackService{feedback: feedback, runs: runs, log: log}
}

// Create attaches feedback to an existing run
func (s *FeedbackService) Create(ctx context.Context, runID uuid.UUID, correct bool, reasons []string, notes string) (*models.Feedback, error) {
	run, err := s.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !run.Status.Terminal() {
		s.log.Warn("feedback on unfinished run", "run_id", runID, "status", run.Status)
	}

	if reasons == nil {
		reasons = []string{}
	}

	fb := &models.Feedback{
		ID:        uuid.New(),
		RunID:     runID,
		Correct:   correct,
		Reasons:   reasons,
		Notes:     notes,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.feedback.Create(ctx, fb); err != nil {
		return nil, err
	}

	s.log.Info("feedback recorded", "run_id", runID, "correct", correct)
	return fb, nil
}

// ListForRun returns a run's feedback, newest first
func (s *FeedbackService) ListForRun(ctx context.Context, runID uuid.UUID) ([]*models.Feedback, error) {
	if _, err := s.runs.GetByID(ctx, runID); err != nil {
		return nil, err
	}
	return s.feedback.ListByRun(ctx, runID)
}

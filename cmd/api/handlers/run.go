package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gridlens/inspector/cmd/api/service"
	"github.com/gridlens/inspector/common/models"
	"github.com/labstack/echo/v4"
)

// RunHandler serves run status to the polling client
type RunHandler struct {
	runs     *service.RunService
	feedback *service.FeedbackService
}

// NewRunHandler creates a new run handler
func NewRunHandler(runs *service.RunService, feedback *service.FeedbackService) *RunHandler {
	return &RunHandler{runs: runs, feedback: feedback}
}

// Get returns the run and its ordered steps. Polled every second for
// the lifetime of a run: read-only, no side effects.
// GET /runs/:id
func (h *RunHandler) Get(c echo.Context) error {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid run id")
	}

	run, err := h.runs.GetRun(c.Request().Context(), runID)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, run)
}

// ListFeedback lists feedback recorded against a run, newest first
// GET /runs/:id/feedback
func (h *RunHandler) ListFeedback(c echo.Context) error {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid run id")
	}

	items, err := h.feedback.ListForRun(c.Request().Context(), runID)
	if err != nil {
		return httpError(err)
	}
	if items == nil {
		items = []*models.Feedback{}
	}

	return c.JSON(http.StatusOK, items)
}

// Overlay streams the rendered detection overlay
// GET /runs/:id/overlay
func (h *RunHandler) Overlay(c echo.Context) error {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid run id")
	}

	obj, contentType, err := h.runs.Overlay(c.Request().Context(), runID)
	if err != nil {
		return httpError(err)
	}
	defer obj.Close()

	return c.Stream(http.StatusOK, contentType, obj)
}

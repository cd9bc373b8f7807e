package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gridlens/inspector/cmd/api/service"
	"github.com/gridlens/inspector/common/models"
	"github.com/labstack/echo/v4"
)

// PhotoHandler handles photo-related requests
type PhotoHandler struct {
	photos   *service.PhotoService
	runs     *service.RunService
	feedback *service.FeedbackService
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(photos *service.PhotoService, runs *service.RunService, feedback *service.FeedbackService) *PhotoHandler {
	return &PhotoHandler{photos: photos, runs: runs, feedback: feedback}
}

// Upload stores a new photo
// POST /photos/upload
func (h *PhotoHandler) Upload(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "multipart field 'file' is required")
	}

	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable upload")
	}
	defer src.Close()

	photo, err := h.photos.Upload(
		c.Request().Context(),
		file.Filename,
		file.Header.Get("Content-Type"),
		src,
		file.Size,
	)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, photo)
}

// List lists photos, most recent first
// GET /photos
func (h *PhotoHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	photos, err := h.photos.List(c.Request().Context(), limit)
	if err != nil {
		return httpError(err)
	}
	if photos == nil {
		photos = []*models.Photo{}
	}

	return c.JSON(http.StatusOK, photos)
}

// Get retrieves a single photo
// GET /photos/:id
func (h *PhotoHandler) Get(c echo.Context) error {
	photoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid photo id")
	}

	photo, err := h.photos.Get(c.Request().Context(), photoID)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, photo)
}

// ListRuns lists a photo's runs, newest first, without steps
// GET /photos/:id/runs
func (h *PhotoHandler) ListRuns(c echo.Context) error {
	photoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid photo id")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	runs, err := h.runs.ListForPhoto(c.Request().Context(), photoID, limit)
	if err != nil {
		return httpError(err)
	}
	if runs == nil {
		runs = []*models.Run{}
	}

	return c.JSON(http.StatusOK, runs)
}

// CreateRun starts a pipeline run over a photo
// POST /photos/:id/run
func (h *PhotoHandler) CreateRun(c echo.Context) error {
	photoID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid photo id")
	}

	req := &service.CreateRunRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	run, err := h.runs.CreateRun(c.Request().Context(), photoID, req)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, run)
}

type feedbackRequest struct {
	RunID   string   `json:"run_id"`
	Correct bool     `json:"correct"`
	Reasons []string `json:"reasons"`
	Notes   string   `json:"notes"`
}

// CreateFeedback attaches feedback to one of the photo's runs
// POST /photos/:id/feedback
func (h *PhotoHandler) CreateFeedback(c echo.Context) error {
	if _, err := uuid.Parse(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid photo id")
	}

	req := &feedbackRequest{}
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	runID, err := uuid.Parse(req.RunID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid run id")
	}

	fb, err := h.feedback.Create(c.Request().Context(), runID, req.Correct, req.Reasons, req.Notes)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"feedback_id": fb.ID.String(),
		"status":      "recorded",
	})
}

// httpError maps service errors onto HTTP status codes
func httpError(err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrOverlayNotReady):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

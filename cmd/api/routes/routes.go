package routes

import (
	"github.com/gridlens/inspector/cmd/api/handlers"
	"github.com/labstack/echo/v4"
)

// Register wires all API routes
func Register(e *echo.Echo, photos *handlers.PhotoHandler, runs *handlers.RunHandler) {
	e.POST("/photos/upload", photos.Upload)
	e.GET("/photos", photos.List)
	e.GET("/photos/:id", photos.Get)
	e.GET("/photos/:id/runs", photos.ListRuns)
	e.POST("/photos/:id/run", photos.CreateRun)
	e.POST("/photos/:id/feedback", photos.CreateFeedback)

	e.GET("/runs/:id", runs.Get)
	e.GET("/runs/:id/feedback", runs.ListFeedback)
	e.GET("/runs/:id/overlay", runs.Overlay)
}

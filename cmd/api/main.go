package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gridlens/inspector/cmd/api/handlers"
	"github.com/gridlens/inspector/cmd/api/routes"
	"github.com/gridlens/inspector/cmd/api/service"
	"github.com/gridlens/inspector/common/bootstrap"
	"github.com/gridlens/inspector/common/db"
	"github.com/gridlens/inspector/common/repository"
	"github.com/gridlens/inspector/common/server"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	ctx := context.Background()

	components, err := bootstrap.Setup(ctx, "api",
		bootstrap.WithDBInitHook(func(database *db.DB) error {
			return db.EnsureSchema(ctx, database)
		}),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap api: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	photoRepo := repository.NewPhotoRepository(components.DB)
	runRepo := repository.NewRunRepository(components.DB)
	feedbackRepo := repository.NewFeedbackRepository(components.DB)

	photoSvc := service.NewPhotoService(photoRepo, components.Storage, components.Logger)
	runSvc := service.NewRunService(runRepo, photoRepo, components.Queue, components.Storage, components.Config, components.Logger)
	feedbackSvc := service.NewFeedbackService(feedbackRepo, runRepo, components.Logger)

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e, components)

	routes.Register(e,
		handlers.NewPhotoHandler(photoSvc, runSvc, feedbackSvc),
		handlers.NewRunHandler(runSvc, feedbackSvc),
	)

	srv := server.New("api", components.Config.Service.Port, e, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
}

func setupHealthCheck(e *echo.Echo, components *bootstrap.Components) {
	e.GET("/health", func(c echo.Context) error {
		if err := components.DB.Health(c.Request().Context()); err != nil {
			return c.JSON(503, map[string]string{
				"status": "degraded",
				"error":  err.Error(),
			})
		}
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"service": "api",
		})
	})
}


package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gridlens/inspector/cmd/pipeline-worker/detector"
	"github.com/gridlens/inspector/cmd/pipeline-worker/executor"
	"github.com/gridlens/inspector/cmd/pipeline-worker/overlay"
	"github.com/gridlens/inspector/cmd/pipeline-worker/steps"
	"github.com/gridlens/inspector/common/bootstrap"
	"github.com/gridlens/inspector/common/repository"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := bootstrap.Setup(ctx, "pipeline-worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap pipeline-worker: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	log := components.Logger

	// Backends are constructed once here and resolved per run by the
	// executor registry; model resources behind them are lazily loaded
	// on first use and read-only afterwards.
	detectors := detector.NewSet(components.Config.Detector, log)

	registry, err := steps.NewRegistry(
		components.Storage,
		detectors,
		overlay.NewBoxRenderer(),
		components.Config.Pipeline,
		log,
	)
	if err != nil {
		log.Error("failed to create executor registry", "error", err)
		os.Exit(1)
	}

	runner := executor.NewRunner(
		repository.NewRunRepository(components.DB),
		repository.NewStepRepository(components.DB),
		repository.NewPhotoRepository(components.DB),
		registry,
		log,
	)

	consumer := executor.NewConsumer(components.Queue, runner, log)
	if err := consumer.Start(ctx); err != nil {
		log.Error("failed to start consumer", "error", err)
		os.Exit(1)
	}

	log.Info("pipeline worker started",
		"detector", components.Config.Detector.Name,
		"concurrency", components.Config.Worker.Concurrency,
	)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown

	log.Info("shutdown signal received", "signal", sig.String())
	cancel()
}

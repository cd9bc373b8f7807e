package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/gridlens/inspector/common/config"
	"github.com/gridlens/inspector/common/db"
	"github.com/gridlens/inspector/common/logger"
	"github.com/gridlens/inspector/common/queue"
	"github.com/gridlens/inspector/common/storage"
	"github.com/redis/go-redis/v9"
)

// Setup initializes all service components. This is the single entry
// point for both the API and the pipeline worker.
func Setup(ctx context.Context, serviceName string, opts ...Option) (*Components, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	components := &Components{
		cleanupFuncs: make([]func() error, 0),
	}

	var err error
	components.Config, err = config.Load(serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	components.Logger = logger.New(
		components.Config.Service.LogLevel,
		components.Config.Service.LogFormat,
	).WithFields(map[string]any{"service": serviceName})

	components.Logger.Info("initializing service",
		"environment", components.Config.Service.Environment,
	)

	components.DB, err = db.New(ctx, components.Config, components.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	components.addCleanup(func() error {
		components.DB.Close()
		return nil
	})

	if options.dbInitHook != nil {
		if err := options.dbInitHook(components.DB); err != nil {
			components.Shutdown(ctx)
			return nil, fmt.Errorf("database init hook failed: %w", err)
		}
	}

	switch components.Config.Queue.Type {
	case "memory":
		components.Queue = queue.NewMemoryQueue(components.Logger)
	case "redis":
		components.Redis = redis.NewClient(&redis.Options{
			Addr:     components.Config.Redis.Addr,
			Password: components.Config.Redis.Password,
			DB:       components.Config.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = components.Redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			components.Shutdown(ctx)
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		components.addCleanup(func() error {
			return components.Redis.Close()
		})

		components.Queue = queue.NewRedisStreamQueue(
			components.Redis,
			components.Config.Queue.Stream,
			components.Config.Queue.Group,
			components.Config.Worker.Concurrency,
			components.Logger,
		)
	default:
		components.Shutdown(ctx)
		return nil, fmt.Errorf("unknown queue type: %s", components.Config.Queue.Type)
	}
	components.addCleanup(func() error {
		return components.Queue.Close()
	})

	components.Storage, err = storage.New(components.Config.Storage)
	if err != nil {
		components.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create object store: %w", err)
	}
	if err := components.Storage.EnsureBucket(ctx, components.Config.Storage.Region); err != nil {
		components.Shutdown(ctx)
		return nil, fmt.Errorf("failed to ensure bucket: %w", err)
	}

	components.Logger.Info("service initialization complete",
		"queue", components.Config.Queue.Type,
	)

	return components, nil
}

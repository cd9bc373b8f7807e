package bootstrap

import (
	"context"

	"github.com/gridlens/inspector/common/config"
	"github.com/gridlens/inspector/common/db"
	"github.com/gridlens/inspector/common/logger"
	"github.com/gridlens/inspector/common/queue"
	"github.com/gridlens/inspector/common/storage"
	"github.com/redis/go-redis/v9"
)

// Components holds the shared infrastructure every service starts from
type Components struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      *db.DB
	Redis   *redis.Client
	Queue   queue.Queue
	Storage *storage.Store

	cleanupFuncs []func() error
}

func (c *Components) addCleanup(fn func() error) {
	c.cleanupFuncs = append(c.cleanupFuncs, fn)
}

// Shutdown releases components in reverse initialization order
func (c *Components) Shutdown(ctx context.Context) {
	for i := len(c.cleanupFuncs) - 1; i >= 0; i-- {
		if err := c.cleanupFuncs[i](); err != nil {
			c.Logger.Error("cleanup failed", "error", err)
		}
	}
}

package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/gridlens/inspector/common/logger"
	"github.com/gridlens/inspector/common/queue"
)

// TaskMessage is the dispatch payload. It carries only the run id; the
// step snapshot is read back from the state store so a redelivered task
// can never execute a stale snapshot.
type TaskMessage struct {
	RunID string `json:"run_id"`
}

// Consumer binds the task queue to the runner
type Consumer struct {
	queue  queue.Queue
	runner *Runner
	log    *logger.Logger
}

// NewConsumer creates a task consumer
func NewConsumer(q queue.Queue, runner *Runner, log *logger.Logger) *Consumer {
	return &Consumer{queue: q, runner: runner, log: log}
}

// Start subscribes to the task stream and returns
func (c *Consumer) Start(ctx context.Context) error {
	return c.queue.Subscribe(ctx, c.handle)
}

func (c *Consumer) handle(ctx context.Context, key string, value []byte) error {
	var task TaskMessage
	if err := json.Unmarshal(value, &task); err != nil {
		return fmt.Errorf("unmarshal task: %w", err)
	}

	runID, err := uuid.Parse(task.RunID)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", task.RunID, err)
	}

	return c.runner.Handle(ctx, runID)
}

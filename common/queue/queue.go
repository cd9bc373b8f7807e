package queue

import (
	"context"
	"sync"

	"github.com/gridlens/inspector/common/logger"
)

// Queue is the at-least-once dispatch channel between the orchestrator
// and the worker pool. A published message may be delivered more than
// once; consumers deduplicate via the run ownership guard.
type Queue interface {
	Publish(ctx context.Context, key string, message []byte) error
	Subscribe(ctx context.Context, handler MessageHandler) error
	Close() error
}

// MessageHandler processes messages
type MessageHandler func(ctx context.Context, key string, value []byte) error

// MemoryQueue is an in-process queue for development and tests
type MemoryQueue struct {
	ch     chan *message
	mu     sync.Mutex
	closed bool
	log    *logger.Logger
}

type message struct {
	key   string
	value []byte
}

// NewMemoryQueue creates a new in-memory queue
func NewMemoryQueue(log *logger.Logger) *MemoryQueue {
	return &MemoryQueue{
		ch:  make(chan *message, 1000),
		log: log,
	}
}

// Publish publishes a message, blocking while the buffer is full. A
// full buffer surfaces as a ctx error to the caller, never a dropped
// task.
func (q *MemoryQueue) Publish(ctx context.Context, key string, value []byte) error {
	msg := &message{key: key, value: value}

	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe consumes messages until ctx is cancelled
func (q *MemoryQueue) Subscribe(ctx context.Context, handler MessageHandler) error {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-q.ch:
				if !ok {
					return
				}
				if err := handler(ctx, msg.key, msg.value); err != nil {
					q.log.Error("message handler error", "key", msg.key, "error", err)
				}
			}
		}
	}()

	return nil
}

// Close closes the queue
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	return nil
}

package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gridlens/inspector/common/logger"
	"github.com/redis/go-redis/v9"
)

// RedisStreamQueue delivers tasks over a Redis stream with a consumer
// group. Delivery is at-least-once: a message is acknowledged only after
// its handler succeeds, and unacknowledged messages are reclaimed from
// the pending list once they sit idle. Duplicate deliveries are expected
// and deduplicated by the run ownership guard downstream.
type RedisStreamQueue struct {
	redis       redis.Cmdable
	stream      string
	group       string
	concurrency int
	reclaimIdle time.Duration
	log         *logger.Logger
}

// NewRedisStreamQueue creates a stream-backed queue. Each Subscribe call
// starts `concurrency` independent consumers in the same group.
func NewRedisStreamQueue(client redis.Cmdable, stream, group string, concurrency int, log *logger.Logger) *RedisStreamQueue {
	if concurrency < 1 {
		concurrency = 1
	}
	return &RedisStreamQueue{
		redis:       client,
		stream:      stream,
		group:       group,
		concurrency: concurrency,
		reclaimIdle: time.Minute,
		log:         log,
	}
}

// Publish appends one message to the stream
func (q *RedisStreamQueue) Publish(ctx context.Context, key string, value []byte) error {
	err := q.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{
			"key":  key,
			"task": string(value),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish to stream %s: %w", q.stream, err)
	}
	return nil
}

// Subscribe starts the consumer pool and returns immediately
func (q *RedisStreamQueue) Subscribe(ctx context.Context, handler MessageHandler) error {
	err := q.redis.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}

	for i := 0; i < q.concurrency; i++ {
		consumer := fmt.Sprintf("worker_%s", uuid.New().String()[:8])
		go q.consumeLoop(ctx, consumer, handler)
	}

	q.log.Info("subscribed to stream",
		"stream", q.stream,
		"group", q.group,
		"consumers", q.concurrency)

	return nil
}

func (q *RedisStreamQueue) consumeLoop(ctx context.Context, consumer string, handler MessageHandler) {
	lastReclaim := time.Now()

	for {
		select {
		case <-ctx.Done():
			q.log.Info("consumer stopping", "consumer", consumer)
			return
		default:
			if time.Since(lastReclaim) >= q.reclaimIdle {
				q.reclaim(ctx, consumer, handler)
				lastReclaim = time.Now()
			}
			if err := q.readOne(ctx, consumer, handler); err != nil {
				q.log.Error("failed to process message", "consumer", consumer, "error", err)
				time.Sleep(1 * time.Second) // back off on error
			}
		}
	}
}

// readOne blocks for one message and hands it to the handler
func (q *RedisStreamQueue) readOne(ctx context.Context, consumer string, handler MessageHandler) error {
	streams, err := q.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: consumer,
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    5 * time.Second,
	}).Result()

	if err == redis.Nil {
		return nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("XREADGROUP: %w", err)
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			q.process(ctx, msg, handler)
		}
	}

	return nil
}

// reclaim picks up messages a consumer read but never acknowledged, so
// a handler fault or a dead worker cannot strand a task. Redelivered
// tasks are deduplicated downstream.
func (q *RedisStreamQueue) reclaim(ctx context.Context, consumer string, handler MessageHandler) {
	msgs, _, err := q.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.reclaimIdle,
		Start:    "0",
		Count:    16,
	}).Result()
	if err != nil {
		if ctx.Err() == nil {
			q.log.Error("XAUTOCLAIM failed", "consumer", consumer, "error", err)
		}
		return
	}

	for _, msg := range msgs {
		q.log.Info("reclaimed pending message", "message_id", msg.ID, "consumer", consumer)
		q.process(ctx, msg, handler)
	}
}

// process runs the handler and acknowledges only on success. A failed
// message stays in the pending list until reclaim retries it.
func (q *RedisStreamQueue) process(ctx context.Context, msg redis.XMessage, handler MessageHandler) {
	key, _ := msg.Values["key"].(string)
	task, _ := msg.Values["task"].(string)

	if err := handler(ctx, key, []byte(task)); err != nil {
		q.log.Error("message handler error, leaving for redelivery",
			"message_id", msg.ID,
			"key", key,
			"error", err)
		return
	}

	if err := q.redis.XAck(ctx, q.stream, q.group, msg.ID).Err(); err != nil {
		q.log.Error("failed to ACK message", "message_id", msg.ID, "error", err)
	}
}

// Close is a no-op; the underlying client is owned by bootstrap
func (q *RedisStreamQueue) Close() error {
	return nil
}

package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gridlens/inspector/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueueDelivers(t *testing.T) {
	q := NewMemoryQueue(logger.New("error", "json"))
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	received := make(map[string]string)
	done := make(chan struct{})

	err := q.Subscribe(ctx, func(ctx context.Context, key string, value []byte) error {
		mu.Lock()
		received[key] = string(value)
		if len(received) == 2 {
			close(done)
		}
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, q.Publish(ctx, "run-1", []byte(`{"run_id":"a"}`)))
	require.NoError(t, q.Publish(ctx, "run-2", []byte(`{"run_id":"b"}`)))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for messages")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, `{"run_id":"a"}`, received["run-1"])
	assert.Equal(t, `{"run_id":"b"}`, received["run-2"])
}

func TestMemoryQueueHandlerErrorDoesNotStopConsumption(t *testing.T) {
	q := NewMemoryQueue(logger.New("error", "json"))
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan string, 1)
	err := q.Subscribe(ctx, func(ctx context.Context, key string, value []byte) error {
		if key == "bad" {
			return assert.AnError
		}
		done <- key
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, q.Publish(ctx, "bad", []byte("x")))
	require.NoError(t, q.Publish(ctx, "good", []byte("y")))

	select {
	case key := <-done:
		assert.Equal(t, "good", key)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer stalled after handler error")
	}
}

func TestMemoryQueueFullBufferSurfacesError(t *testing.T) {
	q := NewMemoryQueue(logger.New("error", "json"))
	defer q.Close()

	// no subscriber: fill the buffer completely
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		require.NoError(t, q.Publish(ctx, "fill", []byte("v")))
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	err := q.Publish(cancelled, "overflow", []byte("v"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestMemoryQueueCloseIsIdempotent(t *testing.T) {
	q := NewMemoryQueue(logger.New("error", "json"))
	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
}

package queue

import (
	"context"
	"testing"

	"github.com/gridlens/inspector/common/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStreamClient stubs the handful of stream commands the queue uses
type fakeStreamClient struct {
	redis.Cmdable

	pending   []redis.XMessage // delivered by XReadGroup
	claimable []redis.XMessage // delivered by XAutoClaim
	acked     []string
	added     []map[string]interface{}
}

func (f *fakeStreamClient) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.added = append(f.added, a.Values.(map[string]interface{}))
	cmd := redis.NewStringCmd(ctx)
	cmd.SetVal("1-0")
	return cmd
}

func (f *fakeStreamClient) XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeStreamClient) XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	cmd := redis.NewXStreamSliceCmd(ctx)
	if len(f.pending) == 0 {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	msg := f.pending[0]
	f.pending = f.pending[1:]
	cmd.SetVal([]redis.XStream{{Stream: a.Streams[0], Messages: []redis.XMessage{msg}}})
	return cmd
}

func (f *fakeStreamClient) XAutoClaim(ctx context.Context, a *redis.XAutoClaimArgs) *redis.XAutoClaimCmd {
	cmd := redis.NewXAutoClaimCmd(ctx)
	cmd.SetVal(f.claimable, "0-0")
	f.claimable = nil
	return cmd
}

func (f *fakeStreamClient) XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd {
	f.acked = append(f.acked, ids...)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(ids)))
	return cmd
}

func taskMessage(id string) redis.XMessage {
	return redis.XMessage{
		ID:     id,
		Values: map[string]interface{}{"key": "run-1", "task": `{"run_id":"a"}`},
	}
}

func streamQueue(client *fakeStreamClient) *RedisStreamQueue {
	return NewRedisStreamQueue(client, "pipeline.run.requests", "pipeline_workers", 1, logger.New("error", "json"))
}

func TestRedisStreamAcksOnHandlerSuccess(t *testing.T) {
	client := &fakeStreamClient{pending: []redis.XMessage{taskMessage("1-0")}}
	q := streamQueue(client)

	var gotKey, gotValue string
	err := q.readOne(context.Background(), "w1", func(ctx context.Context, key string, value []byte) error {
		gotKey, gotValue = key, string(value)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", gotKey)
	assert.Equal(t, `{"run_id":"a"}`, gotValue)
	assert.Equal(t, []string{"1-0"}, client.acked)
}

func TestRedisStreamHandlerErrorLeavesMessagePending(t *testing.T) {
	client := &fakeStreamClient{pending: []redis.XMessage{taskMessage("1-0")}}
	q := streamQueue(client)

	err := q.readOne(context.Background(), "w1", func(ctx context.Context, key string, value []byte) error {
		return assert.AnError
	})
	require.NoError(t, err)

	// no ack: the message stays in the pending list for reclaim
	assert.Empty(t, client.acked)
}

func TestRedisStreamReclaimRedeliversAndAcks(t *testing.T) {
	client := &fakeStreamClient{claimable: []redis.XMessage{taskMessage("1-0")}}
	q := streamQueue(client)

	handled := 0
	q.reclaim(context.Background(), "w2", func(ctx context.Context, key string, value []byte) error {
		handled++
		return nil
	})

	assert.Equal(t, 1, handled)
	assert.Equal(t, []string{"1-0"}, client.acked)
}

func TestRedisStreamPublishShape(t *testing.T) {
	client := &fakeStreamClient{}
	q := streamQueue(client)

	require.NoError(t, q.Publish(context.Background(), "run-1", []byte(`{"run_id":"a"}`)))
	require.Len(t, client.added, 1)
	assert.Equal(t, "run-1", client.added[0]["key"])
	assert.Equal(t, `{"run_id":"a"}`, client.added[0]["task"])
}

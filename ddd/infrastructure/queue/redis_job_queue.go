package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"streaming-engine/ddd/domain/entity"
	"streaming-engine/pkg/logger"
	"streaming-engine/pkg/redisclient"
)

const popTimeout = time.Second

// RedisList is the subset of the redis client the queue needs.
type RedisList interface {
	PushJSON(ctx context.Context, key string, v interface{}) error
	PopJSON(ctx context.Context, key string, timeout time.Duration, v interface{}) error
	Len(ctx context.Context, key string) (int64, error)
}

// RedisJobQueue shares jobs between processes through a Redis list.
type RedisJobQueue struct {
	client RedisList
	key    string
	closed atomic.Bool
}

func NewRedisJobQueue(client RedisList, key string) *RedisJobQueue {
	return &RedisJobQueue{client: client, key: key}
}

func (q *RedisJobQueue) Enqueue(ctx context.Context, job *entity.TranscodeJob) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	if job == nil {
		return errors.New("job cannot be nil")
	}
	return q.client.PushJSON(ctx, q.key, job.Params())
}

// Dequeue polls the list until a valid job arrives. Entries that cannot be decoded or
// validated are logged and dropped.
func (q *RedisJobQueue) Dequeue(ctx context.Context) (*entity.TranscodeJob, error) {
	for {
		if q.closed.Load() {
			return nil, ErrQueueClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var params entity.TranscodeJobParams
		err := q.client.PopJSON(ctx, q.key, popTimeout, &params)
		if errors.Is(err, redisclient.ErrEmpty) {
			continue
		}
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			logger.Warnf("Dropping undecodable queue entry key=%s err=%v", q.key, err)
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, err
		}

		job, err := entity.NewTranscodeJob(params)
		if err != nil {
			logger.Warnf("Dropping invalid queue entry key=%s id=%s err=%v", q.key, params.ID, err)
			continue
		}
		return job, nil
	}
}

func (q *RedisJobQueue) Size(ctx context.Context) int {
	n, err := q.client.Len(ctx, q.key)
	if err != nil {
		return 0
	}
	return int(n)
}

// Close stops local consumers; queued entries stay in Redis.
func (q *RedisJobQueue) Close() error {
	q.closed.Store(true)
	return nil
}

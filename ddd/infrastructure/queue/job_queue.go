package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"streaming-engine/ddd/domain/entity"
	"streaming-engine/internal/resource"
	"streaming-engine/pkg/config"
	"streaming-engine/pkg/logger"
)

var (
	ErrQueueClosed = errors.New("queue is closed")
	ErrQueueFull   = errors.New("queue is full")
)

// JobQueue 打包任务队列
type JobQueue interface {
	Enqueue(ctx context.Context, job *entity.TranscodeJob) error
	// Dequeue blocks until a job is available, ctx is done or the queue is closed.
	Dequeue(ctx context.Context) (*entity.TranscodeJob, error)
	Size(ctx context.Context) int
	Close() error
}

type memoryJobQueue struct {
	queue     chan *entity.TranscodeJob
	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryJobQueue 创建内存队列
func NewMemoryJobQueue(capacity int) JobQueue {
	if capacity <= 0 {
		capacity = 100
	}
	return &memoryJobQueue{
		queue: make(chan *entity.TranscodeJob, capacity),
		done:  make(chan struct{}),
	}
}

func (q *memoryJobQueue) Enqueue(ctx context.Context, job *entity.TranscodeJob) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}
	select {
	case q.queue <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (q *memoryJobQueue) Dequeue(ctx context.Context) (*entity.TranscodeJob, error) {
	select {
	case job := <-q.queue:
		return job, nil
	case <-q.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *memoryJobQueue) Size(context.Context) int { return len(q.queue) }

func (q *memoryJobQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}

// NewJobQueue selects the backend named by worker.queue_backend. The redis backend
// needs an open Redis resource.
func NewJobQueue(cfg config.WorkerConfig, redis RedisList) (JobQueue, error) {
	switch cfg.QueueBackend {
	case "", "memory":
		return NewMemoryJobQueue(cfg.QueueCapacity), nil
	case "redis":
		if redis == nil {
			return nil, fmt.Errorf("redis queue backend selected but redis is not connected")
		}
		return NewRedisJobQueue(redis, cfg.QueueKey), nil
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.QueueBackend)
	}
}

var (
	queueOnce    sync.Once
	defaultQueue JobQueue
)

// DefaultJobQueue returns the process wide queue built from the global config. Resources
// must be open before the first call.
func DefaultJobQueue() JobQueue {
	queueOnce.Do(func() {
		cfg := config.GetGlobalConfig()
		if cfg == nil {
			cfg = config.Default()
		}
		var list RedisList
		if client := resource.DefaultRedisResource().Queue(); client != nil {
			list = client
		}
		q, err := NewJobQueue(cfg.Worker, list)
		if err != nil {
			panic("create job queue: " + err.Error())
		}
		logger.Infof("Job queue ready backend=%s capacity=%d", cfg.Worker.QueueBackend, cfg.Worker.QueueCapacity)
		defaultQueue = q
	})
	return defaultQueue
}

// CloseDefaultJobQueue closes the default queue if it was created.
func CloseDefaultJobQueue() {
	if defaultQueue != nil {
		_ = defaultQueue.Close()
	}
}

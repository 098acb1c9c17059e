package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"streaming-engine/ddd/domain/entity"
	"streaming-engine/ddd/domain/vo"
	"streaming-engine/ddd/infrastructure/queue"
	"streaming-engine/pkg/logger"
)

// Runner executes one job end to end.
type Runner interface {
	Run(ctx context.Context, job *entity.TranscodeJob) vo.JobOutcome
}

// JobWorker pulls jobs from a queue and runs them on a fixed number of goroutines.
type JobWorker interface {
	Start(ctx context.Context) error
	Stop() error
	IsRunning() bool
	GetStats() WorkerStats
}

// WorkerStats 工作器统计信息
type WorkerStats struct {
	ProcessedJobs    uint64    `json:"processed_jobs"`
	SucceededJobs    uint64    `json:"succeeded_jobs"`
	FailedJobs       uint64    `json:"failed_jobs"`
	CurrentlyRunning int       `json:"currently_running"`
	StartTime        time.Time `json:"start_time"`
	LastJobTime      time.Time `json:"last_job_time"`
}

type jobWorkerImpl struct {
	id          string
	queue       queue.JobQueue
	runner      Runner
	workerCount int
	running     bool
	cancel      context.CancelFunc
	stats       WorkerStats
	mu          sync.RWMutex
	wg          sync.WaitGroup
}

// NewJobWorker 创建打包工作器
func NewJobWorker(id string, q queue.JobQueue, runner Runner, workerCount int) JobWorker {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &jobWorkerImpl{
		id:          id,
		queue:       q,
		runner:      runner,
		workerCount: workerCount,
		stats:       WorkerStats{StartTime: time.Now()},
	}
}

func (w *jobWorkerImpl) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("worker %s is already running", w.id)
	}
	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.stats.StartTime = time.Now()

	w.wg.Add(w.workerCount)
	for i := 0; i < w.workerCount; i++ {
		go w.workerLoop(workerCtx, i)
	}
	logger.Infof("Job worker started id=%s goroutines=%d", w.id, w.workerCount)
	return nil
}

// Stop cancels the loops and waits for in-flight jobs to return.
func (w *jobWorkerImpl) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	if w.cancel != nil {
		w.cancel()
	}
	w.running = false
	w.mu.Unlock()

	w.wg.Wait()
	logger.Infof("Job worker stopped id=%s", w.id)
	return nil
}

func (w *jobWorkerImpl) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *jobWorkerImpl) GetStats() WorkerStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *jobWorkerImpl) workerLoop(ctx context.Context, slot int) {
	defer w.wg.Done()
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrQueueClosed) {
				return
			}
			logger.Warnf("Dequeue failed worker=%s slot=%d err=%v", w.id, slot, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}
		w.processJob(ctx, job)
	}
}

func (w *jobWorkerImpl) processJob(ctx context.Context, job *entity.TranscodeJob) {
	w.updateStats(func(s *WorkerStats) { s.CurrentlyRunning++; s.LastJobTime = time.Now() })
	outcome := w.runner.Run(ctx, job)
	w.updateStats(func(s *WorkerStats) {
		s.CurrentlyRunning--
		s.ProcessedJobs++
		if outcome.Success {
			s.SucceededJobs++
		} else {
			s.FailedJobs++
		}
	})
}

func (w *jobWorkerImpl) updateStats(fn func(*WorkerStats)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(&w.stats)
}

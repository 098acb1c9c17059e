package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"streaming-engine/ddd/domain/entity"
	"streaming-engine/ddd/domain/vo"
	"streaming-engine/ddd/infrastructure/queue"
)

type recordingRunner struct {
	mu   sync.Mutex
	ids  []string
	done chan struct{}
}

func (r *recordingRunner) Run(_ context.Context, job *entity.TranscodeJob) vo.JobOutcome {
	r.mu.Lock()
	r.ids = append(r.ids, job.ID())
	n := len(r.ids)
	r.mu.Unlock()
	if n == 2 {
		close(r.done)
	}
	return vo.NewJobOutcome(job.ID(), job.ID() == "ok", nil)
}

func TestJobWorkerRunsQueuedJobs(t *testing.T) {
	q := queue.NewMemoryJobQueue(4)
	runner := &recordingRunner{done: make(chan struct{})}
	w := NewJobWorker("test", q, runner, 2)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail")
	}

	for _, id := range []string{"ok", "bad"} {
		job, err := entity.NewTranscodeJob(entity.TranscodeJobParams{ID: id, SourceLocator: "/in.mp4", Destination: "out/" + id})
		if err != nil {
			t.Fatal(err)
		}
		if err := q.Enqueue(context.Background(), job); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case <-runner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs were not processed")
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if w.IsRunning() {
		t.Fatal("worker still running after Stop")
	}

	stats := w.GetStats()
	if stats.ProcessedJobs != 2 || stats.SucceededJobs != 1 || stats.FailedJobs != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.CurrentlyRunning != 0 {
		t.Fatalf("running = %d", stats.CurrentlyRunning)
	}
}

func TestJobWorkerExitsWhenQueueCloses(t *testing.T) {
	q := queue.NewMemoryJobQueue(1)
	w := NewJobWorker("test", q, &recordingRunner{done: make(chan struct{})}, 1)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	_ = q.Close()

	stopped := make(chan struct{})
	go func() {
		_ = w.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked")
	}
}

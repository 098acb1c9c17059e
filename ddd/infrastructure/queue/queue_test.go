package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"streaming-engine/ddd/domain/entity"
	"streaming-engine/pkg/config"
	"streaming-engine/pkg/redisclient"
)

func newJob(t *testing.T, id string) *entity.TranscodeJob {
	t.Helper()
	job, err := entity.NewTranscodeJob(entity.TranscodeJobParams{
		ID:            id,
		SourceLocator: "/tmp/in.mp4",
		Destination:   "streams/" + id,
	})
	if err != nil {
		t.Fatalf("NewTranscodeJob: %v", err)
	}
	return job
}

func TestMemoryQueueFIFO(t *testing.T) {
	q := NewMemoryJobQueue(2)
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		if err := q.Enqueue(ctx, newJob(t, id)); err != nil {
			t.Fatalf("Enqueue(%s): %v", id, err)
		}
	}
	if err := q.Enqueue(ctx, newJob(t, "c")); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if q.Size(ctx) != 2 {
		t.Fatalf("Size = %d", q.Size(ctx))
	}
	for _, want := range []string{"a", "b"} {
		job, err := q.Dequeue(ctx)
		if err != nil || job.ID() != want {
			t.Fatalf("Dequeue = %v, %v; want %s", job, err, want)
		}
	}
}

func TestMemoryQueueCloseUnblocksDequeue(t *testing.T) {
	q := NewMemoryJobQueue(1)
	errc := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		errc <- err
	}()
	time.Sleep(10 * time.Millisecond)
	_ = q.Close()
	select {
	case err := <-errc:
		if !errors.Is(err, ErrQueueClosed) {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not return after Close")
	}
	if err := q.Enqueue(context.Background(), newJob(t, "x")); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("Enqueue after close = %v", err)
	}
}

func TestMemoryQueueDequeueHonorsContext(t *testing.T) {
	q := NewMemoryJobQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := q.Dequeue(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

// fakeList mimics LPUSH/BRPOP on an in-memory slice.
type fakeList struct {
	mu    sync.Mutex
	items [][]byte
}

func (f *fakeList) PushJSON(_ context.Context, _ string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append([][]byte{data}, f.items...)
	return nil
}

func (f *fakeList) PopJSON(ctx context.Context, _ string, _ time.Duration, v interface{}) error {
	f.mu.Lock()
	if len(f.items) == 0 {
		f.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
		return redisclient.ErrEmpty
	}
	last := f.items[len(f.items)-1]
	f.items = f.items[:len(f.items)-1]
	f.mu.Unlock()
	return json.Unmarshal(last, v)
}

func (f *fakeList) Len(context.Context, string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.items)), nil
}

func TestRedisQueueRoundTripsJobs(t *testing.T) {
	list := &fakeList{}
	q := NewRedisJobQueue(list, "jobs")
	ctx := context.Background()

	job, err := entity.NewTranscodeJob(entity.TranscodeJobParams{
		ID:            "j1",
		SourceLocator: "streams/raw/u/in.mp4",
		SourceBucket:  "raw-video",
		Destination:   "streams/j1",
		KeyURL:        "/keys/j1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := q.Enqueue(ctx, job); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if q.Size(ctx) != 1 {
		t.Fatalf("Size = %d", q.Size(ctx))
	}
	got, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got.ID() != "j1" || got.SourceBucket() != "raw-video" || got.KeyURL() != "/keys/j1" {
		t.Fatalf("job = %+v", got.Params())
	}
	if len(got.Renditions()) != len(job.Renditions()) {
		t.Fatalf("renditions = %v", got.Renditions())
	}
}

func TestRedisQueueSkipsInvalidEntries(t *testing.T) {
	list := &fakeList{}
	q := NewRedisJobQueue(list, "jobs")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	list.items = [][]byte{[]byte(`{"id":"ok","source_locator":"/in.mp4","destination":"d/ok"}`), []byte(`{"id":""}`), []byte(`not json`)}
	got, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if got.ID() != "ok" {
		t.Fatalf("id = %s", got.ID())
	}
}

func TestNewJobQueueSelectsBackend(t *testing.T) {
	if _, err := NewJobQueue(config.WorkerConfig{QueueBackend: "redis"}, nil); err == nil {
		t.Fatal("redis backend without a client should fail")
	}
	if _, err := NewJobQueue(config.WorkerConfig{QueueBackend: "kafka"}, nil); err == nil {
		t.Fatal("unknown backend should fail")
	}
	q, err := NewJobQueue(config.WorkerConfig{QueueCapacity: 3}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := q.(*memoryJobQueue); !ok {
		t.Fatalf("got %T", q)
	}
}

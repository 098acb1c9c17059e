package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"streaming-engine/ddd/domain/entity"
	"streaming-engine/pkg/config"
)

type pipeline struct {
	engine  *fakeEngine
	store   *memStorage
	sink    *recordingSink
	tempDir string
	orch    JobOrchestrator
}

func newPipeline(t *testing.T, deadlines config.StageDeadlines) *pipeline {
	t.Helper()
	p := &pipeline{
		engine:  newFakeEngine(1920, 1080),
		store:   newMemStorage(),
		sink:    &recordingSink{},
		tempDir: t.TempDir(),
	}
	p.orch = NewJobOrchestrator(
		NewSourceFetcher(p.store),
		NewEncodeInvoker(p.engine, NewRenditionPlanner(p.engine)),
		NewPlaylistComposer(),
		NewResultPublisher(p.store, PublishOptions{Concurrency: 3}),
		p.sink,
		OrchestratorOptions{
			TempDir:      p.tempDir,
			OutputBucket: "hls",
			Deadlines:    deadlines,
		},
	)
	return p
}

func (p *pipeline) scratchEntries(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(p.tempDir, "jobs"))
	if errors.Is(err, os.ErrNotExist) {
		return 0
	}
	if err != nil {
		t.Fatal(err)
	}
	return len(entries)
}

func newTestJob(t *testing.T, params entity.TranscodeJobParams) *entity.TranscodeJob {
	t.Helper()
	if params.ID == "" {
		params.ID = "job-1"
	}
	if params.SourceLocator == "" {
		params.SourceLocator = "/data/src.mp4"
	}
	if params.Destination == "" {
		params.Destination = "streams/video-42"
	}
	if params.Renditions == nil {
		params.Renditions = specs1080()
	}
	job, err := entity.NewTranscodeJob(params)
	if err != nil {
		t.Fatal(err)
	}
	return job
}

func TestRunEndToEnd(t *testing.T) {
	p := newPipeline(t, config.StageDeadlines{})
	outcome := p.orch.Run(context.Background(), newTestJob(t, entity.TranscodeJobParams{CallbackURL: "http://cb.local/done"}))

	if !outcome.Success || len(outcome.Errors) != 0 || outcome.ID != "video-42" {
		t.Fatalf("outcome = %+v", outcome)
	}
	keys, _ := p.store.ListKeys(context.Background(), "hls", "")
	want := []string{
		"streams/video-42/videos/00_320x180/playlist.m3u8",
		"streams/video-42/videos/00_320x180/segment_00000.ts",
		"streams/video-42/videos/01_854x480/playlist.m3u8",
		"streams/video-42/videos/01_854x480/segment_00000.ts",
		"streams/video-42/videos/master.m3u8",
	}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Fatalf("keys = %v", keys)
	}
	master := string(p.store.objects["hls/streams/video-42/videos/master.m3u8"].data)
	first := strings.Index(master, "BANDWIDTH=728000,RESOLUTION=320x180")
	second := strings.Index(master, "BANDWIDTH=1456000,RESOLUTION=854x480")
	if first < 0 || second < first {
		t.Fatalf("master = %q", master)
	}

	if len(p.sink.outcomes) != 1 || p.sink.targets[0] != "http://cb.local/done" {
		t.Fatalf("sink = %+v %v", p.sink.outcomes, p.sink.targets)
	}
	if p.engine.probes != 1 {
		t.Fatalf("probes = %d", p.engine.probes)
	}
	if n := p.scratchEntries(t); n != 0 {
		t.Fatalf("scratch entries left = %d", n)
	}
}

func TestRunPartialFailureStillSucceeds(t *testing.T) {
	p := newPipeline(t, config.StageDeadlines{})
	p.engine.failWidth[320] = true
	outcome := p.orch.Run(context.Background(), newTestJob(t, entity.TranscodeJobParams{}))

	if !outcome.Success || len(outcome.Errors) != 1 {
		t.Fatalf("outcome = %+v", outcome)
	}
	master := string(p.store.objects["hls/streams/video-42/videos/master.m3u8"].data)
	if strings.Contains(master, "320x180") || !strings.Contains(master, "854x480") {
		t.Fatalf("master = %q", master)
	}
}

func TestRunZeroSuccessfulRenditions(t *testing.T) {
	p := newPipeline(t, config.StageDeadlines{})
	p.engine.failWidth[320] = true
	p.engine.failWidth[854] = true
	outcome := p.orch.Run(context.Background(), newTestJob(t, entity.TranscodeJobParams{}))

	if outcome.Success || outcome.ID != "job-1" {
		t.Fatalf("outcome = %+v", outcome)
	}
	if len(outcome.Errors) != 3 || outcome.Errors[2] != "no successful renditions" {
		t.Fatalf("errors = %q", outcome.Errors)
	}
	if keys, _ := p.store.ListKeys(context.Background(), "hls", ""); len(keys) != 0 {
		t.Fatalf("nothing should be published: %v", keys)
	}
	if len(p.sink.outcomes) != 1 {
		t.Fatal("sink not notified")
	}
}

func TestRunFetchFailureSkipsEncode(t *testing.T) {
	p := newPipeline(t, config.StageDeadlines{})
	outcome := p.orch.Run(context.Background(), newTestJob(t, entity.TranscodeJobParams{
		SourceLocator: "raw/missing.mp4",
		SourceBucket:  "raw",
	}))

	if outcome.Success || len(outcome.Errors) != 1 || !strings.HasPrefix(outcome.Errors[0], "source not found") {
		t.Fatalf("outcome = %+v", outcome)
	}
	if p.engine.probes != 0 || len(p.engine.requests) != 0 {
		t.Fatal("engine must not run after a failed fetch")
	}
	if len(p.sink.outcomes) != 1 || p.sink.outcomes[0].Success {
		t.Fatalf("sink = %+v", p.sink.outcomes)
	}
}

func TestRunFetchesFromBucket(t *testing.T) {
	p := newPipeline(t, config.StageDeadlines{})
	_ = p.store.Put(context.Background(), "raw", "streams/raw/u/in.mp4", strings.NewReader("v"), 1, "video/mp4")
	outcome := p.orch.Run(context.Background(), newTestJob(t, entity.TranscodeJobParams{
		SourceLocator: "streams/raw/u/in.mp4",
		SourceBucket:  "raw",
	}))
	if !outcome.Success {
		t.Fatalf("outcome = %+v", outcome)
	}
	src := p.engine.requests[0].SourcePath
	if !strings.HasPrefix(src, p.tempDir) || filepath.Ext(src) != ".mp4" {
		t.Fatalf("source path = %s", src)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatal("fetched source should be removed with the scratch arena")
	}
}

func TestRunPublishFailureKeepsScratch(t *testing.T) {
	p := newPipeline(t, config.StageDeadlines{})
	p.store.putErr = errors.New("bucket unavailable")
	outcome := p.orch.Run(context.Background(), newTestJob(t, entity.TranscodeJobParams{}))

	if outcome.Success || !strings.HasPrefix(outcome.Errors[len(outcome.Errors)-1], "publish failed") {
		t.Fatalf("outcome = %+v", outcome)
	}
	if n := p.scratchEntries(t); n != 1 {
		t.Fatalf("scratch entries = %d, want 1", n)
	}
}

func TestRunEncryptedPublishesKey(t *testing.T) {
	p := newPipeline(t, config.StageDeadlines{})
	outcome := p.orch.Run(context.Background(), newTestJob(t, entity.TranscodeJobParams{KeyURL: "/keys/job-1"}))
	if !outcome.Success {
		t.Fatalf("outcome = %+v", outcome)
	}
	if _, ok := p.store.objects["hls/streams/video-42/keys"]; !ok {
		t.Fatal("key file not published")
	}
	if p.engine.requests[0].Encryption.KeyURL != "/keys/job-1" {
		t.Fatalf("encryption = %+v", p.engine.requests[0].Encryption)
	}
}

func TestRunEncodeDeadline(t *testing.T) {
	p := newPipeline(t, config.StageDeadlines{Encode: 20 * time.Millisecond})
	p.engine.block = true
	outcome := p.orch.Run(context.Background(), newTestJob(t, entity.TranscodeJobParams{}))

	if outcome.Success || len(outcome.Errors) != 1 || !strings.HasPrefix(outcome.Errors[0], "stage deadline exceeded") {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestRunNotificationFailureDoesNotChangeOutcome(t *testing.T) {
	p := newPipeline(t, config.StageDeadlines{})
	p.sink.err = errors.New("callback down")
	outcome := p.orch.Run(context.Background(), newTestJob(t, entity.TranscodeJobParams{}))
	if !outcome.Success || len(outcome.Errors) != 0 {
		t.Fatalf("outcome = %+v", outcome)
	}
}

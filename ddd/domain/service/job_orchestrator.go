package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"streaming-engine/ddd/domain/entity"
	"streaming-engine/ddd/domain/gateway"
	"streaming-engine/ddd/domain/vo"
	"streaming-engine/pkg/config"
	"streaming-engine/pkg/logger"
)

// OrchestratorOptions 编排器配置
type OrchestratorOptions struct {
	TempDir         string
	OutputBucket    string
	VideoFolder     string
	MasterName      string
	KeyFileName     string
	SegmentDuration int
	Deadlines       config.StageDeadlines
}

// OptionsFromConfig builds orchestrator options from the service configuration.
func OptionsFromConfig(cfg *config.Config) OrchestratorOptions {
	return OrchestratorOptions{
		TempDir:         cfg.Transcode.FFmpeg.TempDir,
		OutputBucket:    cfg.Storage.OutputBucket,
		VideoFolder:     cfg.Transcode.VideoFolderName,
		MasterName:      cfg.Transcode.MasterManifestName,
		KeyFileName:     cfg.Transcode.KeyFileName,
		SegmentDuration: cfg.Transcode.SegmentDuration,
		Deadlines:       cfg.Transcode.Deadlines,
	}
}

// JobOrchestrator runs a job through fetch, encode, compose, publish and cleanup,
// then emits the outcome exactly once.
type JobOrchestrator interface {
	Run(ctx context.Context, job *entity.TranscodeJob) vo.JobOutcome
}

type jobOrchestratorImpl struct {
	fetcher   SourceFetcher
	invoker   EncodeInvoker
	composer  PlaylistComposer
	publisher ResultPublisher
	sink      gateway.NotificationSink
	opts      OrchestratorOptions
}

func NewJobOrchestrator(fetcher SourceFetcher, invoker EncodeInvoker, composer PlaylistComposer,
	publisher ResultPublisher, sink gateway.NotificationSink, opts OrchestratorOptions) JobOrchestrator {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.VideoFolder == "" {
		opts.VideoFolder = "videos"
	}
	if opts.MasterName == "" {
		opts.MasterName = "master.m3u8"
	}
	if opts.KeyFileName == "" {
		opts.KeyFileName = "keys"
	}
	if opts.SegmentDuration <= 0 {
		opts.SegmentDuration = 10
	}
	return &jobOrchestratorImpl{
		fetcher:   fetcher,
		invoker:   invoker,
		composer:  composer,
		publisher: publisher,
		sink:      sink,
		opts:      opts,
	}
}

// scratchArena is the job-exclusive local area, never shared with another run.
type scratchArena struct {
	root   string
	output string
	input  string
}

func (o *jobOrchestratorImpl) newArena() scratchArena {
	root := filepath.Join(o.opts.TempDir, "jobs", uuid.NewString())
	return scratchArena{
		root:   root,
		output: filepath.Join(root, "output"),
		input:  filepath.Join(root, "input"),
	}
}

func (o *jobOrchestratorImpl) Run(ctx context.Context, job *entity.TranscodeJob) vo.JobOutcome {
	run := entity.NewJobRun(job)
	arena := o.newArena()
	fields := map[string]interface{}{"job_id": job.ID(), "scratch": arena.root}
	logger.Info("Job started", fields)

	if o.execute(ctx, run, arena) {
		o.cleanup(run, arena)
	}
	return o.notify(ctx, run)
}

// execute runs the stages up to and including Publishing. It returns true when the
// run may proceed to Cleaning.
func (o *jobOrchestratorImpl) execute(ctx context.Context, run *entity.JobRun, arena scratchArena) bool {
	job := run.Job()

	o.transition(run, vo.JobStateFetching)
	fetchCtx, cancel := stageContext(ctx, o.opts.Deadlines.Fetch)
	sourcePath, _, err := o.fetcher.Fetch(fetchCtx, job.SourceLocator(), job.SourceBucket(), arena.input)
	err = stageError(fetchCtx, vo.JobStateFetching, err)
	cancel()
	if err != nil {
		o.fail(run, err)
		return false
	}

	o.transition(run, vo.JobStateEncoding)
	videoDir := filepath.Join(arena.output, o.opts.VideoFolder)
	in := &EncodeInput{
		JobID:           job.ID(),
		SourcePath:      sourcePath,
		Renditions:      job.Renditions(),
		SegmentDuration: o.opts.SegmentDuration,
		VideoDir:        videoDir,
	}
	if job.Encrypted() {
		in.Encryption = &gateway.EncryptionSpec{
			KeyPath: filepath.Join(arena.output, o.opts.KeyFileName),
			KeyURL:  job.KeyURL(),
		}
	}
	encodeCtx, cancel := stageContext(ctx, o.opts.Deadlines.Encode)
	report, err := o.invoker.Encode(encodeCtx, in)
	err = stageError(encodeCtx, vo.JobStateEncoding, err)
	cancel()
	if err != nil {
		o.fail(run, err)
		return false
	}
	for _, rendErr := range report.Errors {
		run.AddError(rendErr)
	}

	o.transition(run, vo.JobStateComposing)
	playlist, err := o.composer.Compose(report.Results)
	if err == nil {
		_, err = o.composer.Write(playlist, videoDir, o.opts.MasterName)
		if err != nil {
			err = vo.NewJobError(vo.ErrCompose, vo.JobStateComposing, o.opts.MasterName, err)
		}
	}
	if err != nil {
		o.fail(run, err)
		return false
	}

	o.transition(run, vo.JobStatePublishing)
	publishCtx, cancel := stageContext(ctx, o.opts.Deadlines.Publish)
	err = o.publisher.Publish(publishCtx, arena.output, job.Destination(), o.opts.OutputBucket)
	err = stageError(publishCtx, vo.JobStatePublishing, err)
	cancel()
	if err != nil {
		o.fail(run, err)
		logger.Warn("Scratch tree kept for inspection", map[string]interface{}{
			"job_id":  job.ID(),
			"scratch": arena.root,
		})
		return false
	}
	return true
}

// cleanup removes the scratch arena, including any fetched source copy. Removal errors
// are logged and do not change the outcome.
func (o *jobOrchestratorImpl) cleanup(run *entity.JobRun, arena scratchArena) {
	o.transition(run, vo.JobStateCleaning)
	if err := os.RemoveAll(arena.root); err != nil {
		logger.Warn("Scratch cleanup failed", map[string]interface{}{
			"job_id":  run.Job().ID(),
			"scratch": arena.root,
			"error":   err.Error(),
		})
	}
}

func (o *jobOrchestratorImpl) notify(ctx context.Context, run *entity.JobRun) vo.JobOutcome {
	o.transition(run, vo.JobStateNotified)
	outcome := run.Outcome()
	job := run.Job()

	logger.Info("Job finished", map[string]interface{}{
		"job_id":    job.ID(),
		"success":   outcome.Success,
		"errors":    len(outcome.Errors),
		"failed_at": run.FailedAt().String(),
		"duration":  run.Duration().String(),
	})

	if o.sink == nil {
		return outcome
	}
	// The outcome is still delivered when the caller's context is already done.
	if err := o.sink.Notify(context.WithoutCancel(ctx), job.CallbackURL(), outcome); err != nil {
		deliveryErr := vo.NewJobError(vo.ErrNotificationDelivery, vo.JobStateNotified, job.CallbackURL(), err)
		logger.Warn("Job outcome notification failed", map[string]interface{}{
			"job_id": job.ID(),
			"error":  deliveryErr.Error(),
		})
	}
	return outcome
}

func (o *jobOrchestratorImpl) fail(run *entity.JobRun, err error) {
	stage := run.State()
	if tErr := run.Fail(err); tErr != nil {
		logger.Errorf("Job state transition failed job_id=%s error=%v", run.Job().ID(), tErr)
	}
	logger.Error("Job stage failed", map[string]interface{}{
		"job_id": run.Job().ID(),
		"stage":  stage.String(),
		"error":  err.Error(),
	})
}

func (o *jobOrchestratorImpl) transition(run *entity.JobRun, target vo.JobState) {
	if err := run.TransitionTo(target); err != nil {
		logger.Errorf("Job state transition failed job_id=%s error=%v", run.Job().ID(), err)
		return
	}
	logger.Debugf("Job state changed job_id=%s state=%s", run.Job().ID(), target)
}

func stageContext(ctx context.Context, deadline time.Duration) (context.Context, context.CancelFunc) {
	if deadline > 0 {
		return context.WithTimeout(ctx, deadline)
	}
	return context.WithCancel(ctx)
}

// stageError reports an expired stage deadline as ErrStageDeadline.
func stageError(stageCtx context.Context, stage vo.JobState, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		return vo.NewJobError(vo.ErrStageDeadline, stage, "", err)
	}
	return err
}

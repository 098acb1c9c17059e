package worker

import (
	"context"
	"fmt"

	"streaming-engine/ddd/domain/service"
	"streaming-engine/ddd/infrastructure/executor"
	"streaming-engine/ddd/infrastructure/notify"
	"streaming-engine/ddd/infrastructure/queue"
	"streaming-engine/ddd/infrastructure/storage"
	"streaming-engine/pkg/config"
	"streaming-engine/pkg/logger"
	"streaming-engine/pkg/manager"
	"streaming-engine/pkg/task"
)

// JobWorkerComponentPlugin 负责启动打包Worker
type JobWorkerComponentPlugin struct{}

func (p *JobWorkerComponentPlugin) Name() string {
	return "jobWorkerComponent"
}

func (p *JobWorkerComponentPlugin) MustCreateComponent(deps *manager.Dependencies) manager.Component {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.GetGlobalConfig()
	}
	if !cfg.Worker.Enabled {
		logger.Infof("Job worker disabled, skip component")
		return nil
	}

	orchestrator, err := NewOrchestrator(cfg)
	if err != nil {
		panic("create job orchestrator: " + err.Error())
	}
	workerID := cfg.Worker.WorkerID
	if workerID == "" {
		workerID = "streaming-worker"
	}
	return &jobWorkerComponent{
		name:   "jobWorker",
		worker: NewJobWorker(workerID, queue.DefaultJobQueue(), orchestrator, cfg.Worker.MaxConcurrentJobs),
	}
}

// NewOrchestrator wires the pipeline stages against the configured storage, ffmpeg and
// notification sinks.
func NewOrchestrator(cfg *config.Config) (service.JobOrchestrator, error) {
	store, err := storage.NewObjectStorage(cfg)
	if err != nil {
		return nil, err
	}
	engine := executor.NewFFmpegEngine(cfg.Transcode.FFmpeg)
	planner := service.NewRenditionPlanner(engine)
	return service.NewJobOrchestrator(
		service.NewSourceFetcher(store),
		service.NewEncodeInvoker(engine, planner),
		service.NewPlaylistComposer(),
		service.NewResultPublisher(store, service.PublishOptions{
			Concurrency: cfg.Publish.Concurrency,
			MaxDepth:    cfg.Publish.MaxDepth,
		}),
		notify.NewSinkFromConfig(cfg),
		service.OptionsFromConfig(cfg),
	), nil
}

type jobWorkerComponent struct {
	name   string
	worker JobWorker
}

func (c *jobWorkerComponent) Start() error {
	if c.worker == nil {
		return fmt.Errorf("job worker not initialized")
	}
	// 注册后台任务，让应用启动时统一管理
	task.Register(&backgroundTaskAdapter{name: c.name, startFunc: c.worker.Start, stopFunc: c.worker.Stop})
	logger.Infof("Job worker component registered background task name=%s", c.name)
	return nil
}

func (c *jobWorkerComponent) Stop() error {
	// 背景任务由 task.Manager 控制停止，这里只关闭队列
	queue.CloseDefaultJobQueue()
	logger.Infof("Job worker component stopped name=%s", c.name)
	return nil
}

func (c *jobWorkerComponent) GetName() string {
	return c.name
}

// backgroundTaskAdapter adapts Start/Stop functions to the BackgroundTask interface.
type backgroundTaskAdapter struct {
	name      string
	startFunc func(ctx context.Context) error
	stopFunc  func() error
}

func (b *backgroundTaskAdapter) Name() string                    { return b.name }
func (b *backgroundTaskAdapter) Start(ctx context.Context) error { return b.startFunc(ctx) }
func (b *backgroundTaskAdapter) Stop() error                     { return b.stopFunc() }

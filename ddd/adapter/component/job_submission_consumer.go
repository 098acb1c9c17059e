package component

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	appsvc "streaming-engine/ddd/application/app"
	"streaming-engine/ddd/application/cqe"
	"streaming-engine/pkg/config"
	pkgkafka "streaming-engine/pkg/kafka"
	"streaming-engine/pkg/logger"
	"streaming-engine/pkg/manager"
)

// JobSubmissionConsumerPlugin 消费Kafka中的打包任务
type JobSubmissionConsumerPlugin struct{}

func (p *JobSubmissionConsumerPlugin) Name() string { return "jobSubmissionConsumer" }

func (p *JobSubmissionConsumerPlugin) MustCreateComponent(deps *manager.Dependencies) manager.Component {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.GetGlobalConfig()
	}
	if !cfg.Kafka.Enabled || !pkgkafka.DefaultClient().Opened() {
		logger.Infof("Kafka disabled, skip job submission consumer")
		return nil
	}
	var app appsvc.JobApp
	if v, ok := deps.JobApp.(appsvc.JobApp); ok {
		app = v
	}
	if app == nil {
		app = appsvc.DefaultJobApp()
	}
	topic := cfg.Kafka.Topics.PackageJobs
	return NewJobSubmissionConsumer(app, cfg.Kafka, func() MessageReader {
		return pkgkafka.DefaultClient().Reader(topic, cfg.Kafka.GroupID)
	})
}

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type JobSubmissionConsumer struct {
	app       appsvc.JobApp
	cfg       config.KafkaConfig
	newReader func() MessageReader
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

func NewJobSubmissionConsumer(app appsvc.JobApp, cfg config.KafkaConfig, newReader func() MessageReader) *JobSubmissionConsumer {
	return &JobSubmissionConsumer{app: app, cfg: cfg, newReader: newReader}
}

func (c *JobSubmissionConsumer) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	reader := c.newReader()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer reader.Close()
		logger.Infof("Kafka consumer started topic=%s group=%s", c.cfg.Topics.PackageJobs, c.cfg.GroupID)
		c.consume(ctx, reader)
	}()
	return nil
}

func (c *JobSubmissionConsumer) consume(ctx context.Context, reader MessageReader) {
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				logger.Debug("Kafka reader EOF")
			} else {
				logger.Warnf("Kafka read error error=%s", err.Error())
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if c.handle(ctx, msg) {
			if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				logger.Warnf("Kafka commit failed offset=%d error=%s", msg.Offset, err.Error())
			}
		}
	}
}

// handle submits one message and reports whether its offset should be committed.
func (c *JobSubmissionConsumer) handle(ctx context.Context, msg kafkago.Message) bool {
	var cmd cqe.SubmitJobCmd
	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		logger.Warnf("Kafka message unmarshal error error=%s offset=%d", err.Error(), msg.Offset)
		return c.cfg.CommitOnDecodeError
	}
	job, err := c.app.SubmitJob(ctx, &cmd)
	if err != nil {
		logger.Warnf("SubmitJob failed error=%s source=%s", err.Error(), cmd.Source)
		return c.cfg.CommitOnProcessError
	}
	logger.Infof("Kafka job accepted job_id=%s source=%s", job.ID, cmd.Source)
	return true
}

func (c *JobSubmissionConsumer) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return nil
}

func (c *JobSubmissionConsumer) GetName() string { return "jobSubmissionConsumer" }

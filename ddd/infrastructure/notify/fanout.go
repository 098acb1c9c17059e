package notify

import (
	"context"
	"errors"

	"streaming-engine/ddd/domain/gateway"
	"streaming-engine/ddd/domain/vo"
	"streaming-engine/pkg/config"
	"streaming-engine/pkg/kafka"
)

type fanoutSink struct {
	sinks []gateway.NotificationSink
}

// Fanout delivers to every sink and joins their errors. A single sink is returned as is.
func Fanout(sinks ...gateway.NotificationSink) gateway.NotificationSink {
	kept := make([]gateway.NotificationSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return &fanoutSink{sinks: kept}
}

func (f *fanoutSink) Notify(ctx context.Context, target string, outcome vo.JobOutcome) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Notify(ctx, target, outcome); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewSinkFromConfig builds the HTTP sink, plus the Kafka outcome sink when enabled.
func NewSinkFromConfig(cfg *config.Config) gateway.NotificationSink {
	sinks := []gateway.NotificationSink{
		NewHTTPSink(cfg.Notification.CallbackURL, cfg.Notification.Timeout),
	}
	if cfg.Notification.KafkaEnable && kafka.DefaultClient().Opened() {
		sinks = append(sinks, NewKafkaSink(kafka.DefaultClient(), cfg.Kafka.Topics.JobOutcomes))
	}
	return Fanout(sinks...)
}

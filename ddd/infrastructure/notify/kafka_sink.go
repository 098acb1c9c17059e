package notify

import (
	"context"

	"streaming-engine/ddd/domain/gateway"
	"streaming-engine/ddd/domain/vo"
)

// Producer is the part of the Kafka client the sink uses.
type Producer interface {
	ProduceJSON(ctx context.Context, topic, key string, v interface{}) error
}

// KafkaSink publishes outcomes as JSON events keyed by outcome id.
type KafkaSink struct {
	producer Producer
	topic    string
}

func NewKafkaSink(producer Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

var _ gateway.NotificationSink = (*KafkaSink)(nil)

type outcomeEvent struct {
	vo.JobOutcome
	Target string `json:"target,omitempty"`
}

func (s *KafkaSink) Notify(ctx context.Context, target string, outcome vo.JobOutcome) error {
	return s.producer.ProduceJSON(ctx, s.topic, outcome.ID, outcomeEvent{JobOutcome: outcome, Target: target})
}

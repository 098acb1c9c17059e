package resource

import (
	"streaming-engine/pkg/config"
	"streaming-engine/pkg/kafka"
	"streaming-engine/pkg/logger"
	"streaming-engine/pkg/manager"
)

// KafkaResource opens the shared Kafka client when kafka.enabled is set.
type KafkaResource struct {
	opened bool
}

type KafkaResourcePlugin struct{}

func (p *KafkaResourcePlugin) Name() string { return "kafka" }

func (p *KafkaResourcePlugin) MustCreateResource() manager.Resource { return &KafkaResource{} }

func (r *KafkaResource) MustOpen() {
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before Kafka client")
	}
	if !cfg.Kafka.Enabled {
		logger.Infof("Kafka disabled, skip client")
		return
	}
	kafka.DefaultClient().MustOpen(cfg.Kafka)
	r.opened = true
}

func (r *KafkaResource) Close() {
	if r.opened {
		kafka.DefaultClient().Close()
	}
}

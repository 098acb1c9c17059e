package resource

import (
	"sync"

	"streaming-engine/pkg/assert"
	"streaming-engine/pkg/config"
	"streaming-engine/pkg/logger"
	"streaming-engine/pkg/manager"
	"streaming-engine/pkg/redisclient"
)

var (
	redisResourceOnce sync.Once
	redisSingleton    *RedisResource
)

// RedisResource manages the lifecycle of the shared Redis client.
type RedisResource struct {
	client *redisclient.Client
}

// DefaultRedisResource returns the global Redis resource instance.
func DefaultRedisResource() *RedisResource {
	assert.NotCircular()
	redisResourceOnce.Do(func() {
		redisSingleton = &RedisResource{}
	})
	assert.NotNil(redisSingleton)
	return redisSingleton
}

// MustOpen establishes the Redis connection using global configuration.
func (r *RedisResource) MustOpen() {
	if r.client != nil {
		return
	}

	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized")
	}
	// Only the redis job queue needs a connection.
	if !cfg.Redis.Enabled && cfg.Worker.QueueBackend != "redis" {
		logger.Infof("Redis not required, skip connection queue_backend=%s", cfg.Worker.QueueBackend)
		return
	}

	client, err := redisclient.New(cfg.Redis)
	if err != nil {
		panic("failed to connect redis: " + err.Error())
	}

	r.client = client
	logger.Infof("Redis connected addr=%s db=%d", cfg.Redis.GetRedisAddr(), cfg.Redis.DB)
}

// Close tidy ups the underlying Redis client.
func (r *RedisResource) Close() {
	if r.client != nil {
		_ = r.client.Close()
	}
}

// Queue returns the queue helper bound to the shared client, nil when not connected.
func (r *RedisResource) Queue() *redisclient.Client {
	return r.client
}

// RedisResourcePlugin wires the resource into the manager.
type RedisResourcePlugin struct{}

// Name identifies the plugin slot.
func (p *RedisResourcePlugin) Name() string {
	return "redis"
}

// MustCreateResource returns the singleton Redis resource for registration.
func (p *RedisResourcePlugin) MustCreateResource() manager.Resource {
	return DefaultRedisResource()
}

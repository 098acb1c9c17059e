package redisclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"streaming-engine/pkg/config"
)

// ErrEmpty is returned by PopJSON when the timeout elapses without an item.
var ErrEmpty = errors.New("redis list is empty")

// Client wraps the go-redis client with the list helpers used by the job queue.
type Client struct {
	native *redis.Client
}

// New builds a redis client using service configuration and validates the connection.
func New(cfg config.RedisConfig) (*Client, error) {
	opts := &redis.Options{
		Addr: cfg.GetRedisAddr(),
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}

	opts.DialTimeout = pickDuration(cfg.DialTimeout, 5*time.Second)
	opts.ReadTimeout = pickDuration(cfg.ReadTimeout, 3*time.Second)
	opts.WriteTimeout = pickDuration(cfg.WriteTimeout, 3*time.Second)

	if cfg.EnableTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cli := redis.NewClient(opts)
	if err := cli.Ping(context.Background()).Err(); err != nil {
		_ = cli.Close()
		return nil, err
	}

	return &Client{native: cli}, nil
}

// PushJSON encodes v and pushes it to the head of the list at key.
func (c *Client) PushJSON(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.native.LPush(ctx, key, data).Err()
}

// PopJSON blocks up to timeout for the tail of the list at key and decodes it into v.
func (c *Client) PopJSON(ctx context.Context, key string, timeout time.Duration, v interface{}) error {
	res, err := c.native.BRPop(ctx, timeout, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrEmpty
	}
	if err != nil {
		return err
	}
	// BRPOP replies with [key, value].
	if len(res) != 2 {
		return ErrEmpty
	}
	return json.Unmarshal([]byte(res[1]), v)
}

// Len returns the length of the list at key.
func (c *Client) Len(ctx context.Context, key string) (int64, error) {
	return c.native.LLen(ctx, key).Result()
}

// Raw exposes the underlying go-redis client for advanced use cases.
func (c *Client) Raw() *redis.Client {
	return c.native
}

// Close stops the redis client and releases pooled connections.
func (c *Client) Close() error {
	return c.native.Close()
}

func pickDuration(v time.Duration, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}

// Package redis provides the Redis client shared by the embedding caches.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/paperline/pkg/options"
	redisopts "github.com/kart-io/paperline/pkg/options/redis"
)

// Client wraps a go-redis client built from options.
//
// Example usage:
//
//	opts := redisopts.NewOptions()
//	client, err := New(ctx, opts)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	rdb := client.Client()
//	err = rdb.HSet(ctx, "key", "field", "value").Err()
type Client struct {
	client *goredis.Client
	opts   *redisopts.Options
}

// New creates a Redis client and verifies connectivity with a ping.
//
// Returns an error if:
// - Options are nil or invalid
// - Initial ping fails
func New(ctx context.Context, opts *redisopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("redis options cannot be nil")
	}
	if err := options.Aggregate(opts.Validate()); err != nil {
		return nil, fmt.Errorf("invalid redis options: %w", err)
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr(),
		Password:     opts.Password,
		DB:           opts.Database,
		MaxRetries:   opts.MaxRetries,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", opts.Addr(), err)
	}

	return &Client{
		client: rdb,
		opts:   opts,
	}, nil
}

// Name returns the storage type identifier.
func (c *Client) Name() string {
	return "redis"
}

// Ping checks if the connection to Redis is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Client returns the underlying go-redis client.
func (c *Client) Client() *goredis.Client {
	return c.client
}

// Options returns the Redis options used by this client.
func (c *Client) Options() *redisopts.Options {
	return c.opts
}

// HealthStats contains health information about the Redis connection.
type HealthStats struct {
	Healthy    bool          `json:"healthy"`
	Latency    time.Duration `json:"latency"`
	TotalConns uint32        `json:"total_conns"`
	IdleConns  uint32        `json:"idle_conns"`
	Error      string        `json:"error,omitempty"`
}

// HealthWithStats pings Redis and reports latency and pool usage.
func (c *Client) HealthWithStats(ctx context.Context) *HealthStats {
	stats := &HealthStats{}

	start := time.Now()
	err := c.Ping(ctx)
	stats.Latency = time.Since(start)
	if err != nil {
		stats.Error = err.Error()
		return stats
	}

	stats.Healthy = true
	pool := c.client.PoolStats()
	stats.TotalConns = pool.TotalConns
	stats.IdleConns = pool.IdleConns
	return stats
}

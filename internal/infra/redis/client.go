// Package redis provides the warm cache for activity statistics, so a
// restart can serve the previous aggregate while the first refresh runs.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/bridgewatch/internal/core/domain"
)

const activityKey = "bridgewatch:activity_stats"

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// Client wraps the Redis operations used by the activity aggregator.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client and verifies connectivity.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetActivityStats loads the last stored activity aggregate. The second
// return is false when no snapshot is stored or it has expired.
func (c *Client) GetActivityStats(ctx context.Context) (domain.ActivityStats, bool, error) {
	val, err := c.rdb.Get(ctx, activityKey).Bytes()
	if err == redis.Nil {
		return domain.ActivityStats{}, false, nil
	}
	if err != nil {
		return domain.ActivityStats{}, false, fmt.Errorf("get failed: %w", err)
	}

	var stats domain.ActivityStats
	if err := json.Unmarshal(val, &stats); err != nil {
		return domain.ActivityStats{}, false, fmt.Errorf("corrupt activity snapshot: %w", err)
	}
	return stats, true, nil
}

// SetActivityStats stores the activity aggregate with the given TTL.
func (c *Client) SetActivityStats(ctx context.Context, stats domain.ActivityStats, ttl time.Duration) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshal activity snapshot: %w", err)
	}
	if err := c.rdb.Set(ctx, activityKey, payload, ttl).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Client wraps go-redis for the coordination keys this service needs.
type Client struct {
	rdb    *goredis.Client
	prefix string
	logger *slog.Logger
}

type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewClient connects and pings the server.
func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	logger.Info("Redis connected", "addr", opts.Addr)
	return &Client{rdb: rdb, prefix: opts.Prefix, logger: logger}, nil
}

const runPrefix = "job:run:"

// ClaimRun marks (job, runKey) as taken. It returns false when another
// instance already claimed it within ttl.
func (c *Client) ClaimRun(ctx context.Context, job, runKey string, ttl time.Duration) (bool, error) {
	key := c.prefix + runPrefix + job + ":" + runKey
	ok, err := c.rdb.SetNX(ctx, key, time.Now().UTC().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

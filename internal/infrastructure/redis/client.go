package redis

import (
	"context"
	"time"

	goRedis "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskboard/internal/config"
)

// NewClient creates a Redis client and performs a health check. The client
// backs both the session store and the task change feed.
func NewClient(cfg config.RedisConfig) (*goRedis.Client, error) {
	opts, err := goRedis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	client := goRedis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := Ping(ctx, client); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

// Ping reports whether the server answers.
func Ping(ctx context.Context, client *goRedis.Client) error {
	return client.Ping(ctx).Err()
}

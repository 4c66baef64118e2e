// Package redis connects the snapshot cache to its backing store.
package redis

import (
	"context"
	"time"

	goRedis "github.com/redis/go-redis/v9"

	"github.com/taskforge/backend/internal/config"
)

const probeTimeout = 5 * time.Second

// NewClient dials the Redis instance named by cfg and verifies it answers
// before handing the client out. Explicit password and DB settings win
// over whatever the URL encodes.
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
	probeCtx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	if err := client.Ping(probeCtx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

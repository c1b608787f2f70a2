package database

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/syy-ex/hair-makeover/config"
)

// ConnectRedis returns a client for cfg.Redis, or nil when no address is set.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

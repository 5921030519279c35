package providers

import (
	"context"
	"fmt"
	"iotd/internal/structures"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisProvider returns nil when redis is disabled.
func NewRedisProvider(conf *structures.Config, logger Logger) (*redis.Client, error) {
	if !conf.Redis.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", conf.Redis.Addr, err)
	}
	logger.Infof(TypeApp, "Connected to redis at %s", conf.Redis.Addr)
	return client, nil
}

package utils

import (
	"context"
	"fmt"

	"auction-bidding/internal/config"
	"auction-bidding/pkg/logger"

	"github.com/go-redis/redis/v8"
)

func InitializeRedis(ctx context.Context, cfg config.RedisConfig, log logger.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test Redis connection
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.Address, err)
	}
	log.Info("Connected to Redis", "address", cfg.Address)
	return rdb, nil
}

package backend

import (
	"context"
	"testing"
	"time"

	"auction-bidding/internal/config"
	"auction-bidding/internal/domain"
	"auction-bidding/internal/infrastructure/leader"
	"auction-bidding/internal/infrastructure/memory"
	"auction-bidding/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Memory(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Driver: config.DriverMemory}}

	b, err := Open(context.Background(), cfg, domain.SystemClock{}, logger.NewNop())
	require.NoError(t, err)
	defer b.Close()

	assert.IsType(t, &memory.Store{}, b.Store)
	assert.IsType(t, &memory.EventBus{}, b.Publisher)
	assert.Same(t, b.Publisher, b.Subscriber)
	assert.IsType(t, leader.Local{}, b.Leader)
}

func TestOpen_RedisUnreachable(t *testing.T) {
	cfg := &config.Config{
		Storage: config.StorageConfig{Driver: config.DriverRedis},
		Redis:   config.RedisConfig{Address: "127.0.0.1:1"},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := Open(ctx, cfg, domain.SystemClock{}, logger.NewNop())
	require.Error(t, err)
}

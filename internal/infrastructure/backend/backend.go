// Package backend assembles the storage, event and leadership components
// selected by configuration.
package backend

import (
	"context"
	"database/sql"

	"auction-bidding/internal/config"
	"auction-bidding/internal/domain"
	"auction-bidding/internal/infrastructure/leader"
	"auction-bidding/internal/infrastructure/memory"
	"auction-bidding/internal/infrastructure/mysql"
	"auction-bidding/internal/infrastructure/redis"
	"auction-bidding/pkg/logger"
	"auction-bidding/pkg/utils"

	redisClient "github.com/go-redis/redis/v8"
)

type Backend struct {
	Store      domain.Store
	Publisher  domain.EventPublisher
	Subscriber domain.EventSubscriber
	Leader     domain.LeaderElection

	rdb *redisClient.Client
	db  *sql.DB
	log logger.Logger
}

// Open wires the configured storage driver. Events and leadership go through
// Redis whenever the driver is not memory, so several instances share them.
func Open(ctx context.Context, cfg *config.Config, clock domain.Clock, log logger.Logger) (*Backend, error) {
	b := &Backend{log: log}

	if cfg.Storage.Driver == config.DriverMemory {
		bus := memory.NewEventBus(256, log)
		b.Store = memory.NewStore(clock)
		b.Publisher = bus
		b.Subscriber = bus
		b.Leader = leader.NewLocal()
		return b, nil
	}

	rdb, err := utils.InitializeRedis(ctx, cfg.Redis, log)
	if err != nil {
		return nil, err
	}
	b.rdb = rdb
	b.Publisher = redis.NewEventPublisher(rdb)
	b.Subscriber = redis.NewEventSubscriber(rdb, log)
	b.Leader = leader.NewRedisLeaderElection(rdb, cfg.Leader.Key, cfg.Leader.TTL)

	switch cfg.Storage.Driver {
	case config.DriverRedis:
		b.Store = redis.NewAuctionStore(rdb, clock)
	case config.DriverMySQL:
		db, err := OpenMySQL(ctx, cfg.MySQL, log)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.db = db
		b.Store = mysql.NewAuctionStore(db, clock)
	}
	return b, nil
}

// OpenMySQL applies pending migrations when enabled and opens the pool.
func OpenMySQL(ctx context.Context, cfg config.MySQLConfig, log logger.Logger) (*sql.DB, error) {
	if cfg.Migrate {
		if err := mysql.Migrate(cfg.DSN); err != nil {
			return nil, err
		}
		log.Info("Applied MySQL migrations")
	}
	return utils.InitializeMysql(ctx, cfg, log)
}

func (b *Backend) Close() {
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			b.log.Error("Failed to close MySQL connection", "error", err)
		}
	}
	if b.rdb != nil {
		if err := b.rdb.Close(); err != nil {
			b.log.Error("Failed to close Redis connection", "error", err)
		}
	}
}

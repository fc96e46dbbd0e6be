package services

import (
	"context"
	"testing"
	"time"

	"auction-bidding/internal/config"
	"auction-bidding/internal/domain"
	"auction-bidding/internal/infrastructure/memory"
	"auction-bidding/internal/testutil"
	"auction-bidding/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var testBidding = config.BiddingConfig{MaxAttempts: 3, Precision: 2}

type env struct {
	clock   *testutil.ManualClock
	store   domain.Store
	manager *AuctionManager
	bids    *BidService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	clock := testutil.NewManualClock(start)
	return newEnvWithStore(clock, memory.NewStore(clock), testBidding)
}

func newEnvWithStore(clock *testutil.ManualClock, store domain.Store, cfg config.BiddingConfig) *env {
	log := logger.NewNop()
	bus := memory.NewEventBus(64, log)
	manager := NewAuctionManager(store, bus, clock, cfg.Precision, 100, log)
	return &env{
		clock:   clock,
		store:   store,
		manager: manager,
		bids:    NewBidService(store, manager, bus, clock, cfg, log),
	}
}

func (e *env) createAuction(t *testing.T, price string, closeIn time.Duration) *domain.Auction {
	t.Helper()
	a, err := e.manager.CreateAuction(context.Background(), "seller",
		decimal.RequireFromString(price), e.clock.Now().Add(closeIn))
	require.NoError(t, err)
	return a
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireRejected(t *testing.T, err error, reason domain.RejectionReason) *domain.Rejection {
	t.Helper()
	rejection, ok := domain.AsRejection(err)
	require.Truef(t, ok, "expected rejection %s, got %v", reason, err)
	require.Equal(t, reason, rejection.Reason)
	return rejection
}

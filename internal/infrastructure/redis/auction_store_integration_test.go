package redis

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"auction-bidding/internal/domain"
	"auction-bidding/internal/testutil"
	"auction-bidding/pkg/utils"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// newTestClient connects to REDIS_TEST_ADDRESS, skipping when it is unset.
// The selected database is flushed.
func newTestClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_TEST_ADDRESS")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDRESS not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())
	require.NoError(t, client.FlushDB(ctx).Err())
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestAuctionStore_Integration(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	clock := testutil.NewManualClock(now)
	store := NewAuctionStore(client, clock)

	price := decimal.NewFromInt(100)
	auction := &domain.Auction{
		ID:            utils.GenerateID("auction"),
		SellerID:      "seller",
		StartingPrice: price,
		CurrentPrice:  price,
		CloseTime:     now.Add(time.Minute),
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, store.CreateAuction(ctx, auction))
	require.Error(t, store.CreateAuction(ctx, auction))

	newBid := func(bidder, amount string) *domain.Bid {
		return &domain.Bid{
			ID:        utils.GenerateID("bid"),
			AuctionID: auction.ID,
			BidderID:  bidder,
			Amount:    decimal.RequireFromString(amount),
		}
	}

	_, err := store.CommitBid(ctx, newBid("x", "150"), price)
	require.NoError(t, err)
	_, err = store.CommitBid(ctx, newBid("y", "151"), price)
	require.ErrorIs(t, err, domain.ErrPriceChanged)
	_, err = store.CommitBid(ctx, newBid("y", "151.5"), decimal.NewFromInt(150))
	require.NoError(t, err)
	// stale read that has since been outbid past the amount
	_, err = store.CommitBid(ctx, newBid("z", "151.25"), decimal.NewFromInt(150))
	require.ErrorIs(t, err, domain.ErrBidTooLow)

	got, err := store.GetAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.Equal(t, "151.5", got.CurrentPrice.String())

	highest, err := store.Highest(ctx, auction.ID)
	require.NoError(t, err)
	require.Equal(t, "y", highest.BidderID)

	history, err := store.History(ctx, auction.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "y", history[0].BidderID)

	mine, err := store.BidsByBidder(ctx, "x")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	_, transitioned, err := store.Settle(ctx, auction.ID, now)
	require.NoError(t, err)
	require.False(t, transitioned)

	clock.Advance(time.Minute)
	_, err = store.CommitBid(ctx, newBid("x", "200"), got.CurrentPrice)
	require.ErrorIs(t, err, domain.ErrAuctionClosed)

	expired, err := store.ListExpired(ctx, clock.Now(), 10)
	require.NoError(t, err)
	require.Equal(t, []string{auction.ID}, expired)

	var wg sync.WaitGroup
	results := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := store.Settle(ctx, auction.ID, clock.Now())
			if err == nil {
				results <- ok
			}
		}()
	}
	wg.Wait()
	close(results)
	transitions := 0
	for ok := range results {
		if ok {
			transitions++
		}
	}
	require.Equal(t, 1, transitions)

	settled, err := store.GetAuction(ctx, auction.ID)
	require.NoError(t, err)
	require.False(t, settled.IsActive)
	require.Equal(t, "y", settled.WinnerID)

	expired, err = store.ListExpired(ctx, clock.Now(), 10)
	require.NoError(t, err)
	require.Empty(t, expired)
}

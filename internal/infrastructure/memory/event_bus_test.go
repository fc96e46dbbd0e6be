package memory

import (
	"context"
	"testing"
	"time"

	"auction-bidding/internal/domain"
	"auction-bidding/pkg/logger"

	"github.com/stretchr/testify/require"
)

func TestEventBus_DeliversToSubscribers(t *testing.T) {
	bus := NewEventBus(8, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *domain.BidEvent, 1)
	done := make(chan error, 1)
	go func() {
		done <- bus.SubscribeToBidEvents(ctx, func(event *domain.BidEvent) error {
			received <- event
			return nil
		})
	}()

	// wait until the subscriber is registered
	require.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		return len(bus.subscribers) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.PublishBiddingEvent(ctx, &domain.BidEvent{Type: domain.BidAccepted, AuctionID: "a1"}))

	select {
	case ev := <-received:
		require.Equal(t, "a1", ev.AuctionID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestEventBus_PublishWithoutSubscribers(t *testing.T) {
	bus := NewEventBus(1, logger.NewNop())
	require.NoError(t, bus.PublishBiddingEvent(context.Background(), &domain.BidEvent{Type: domain.BidRejected}))
}

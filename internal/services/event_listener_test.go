package services

import (
	"context"
	"testing"
	"time"

	"auction-bidding/internal/domain"
	"auction-bidding/internal/domain/mocks"
	"auction-bidding/internal/infrastructure/websocket"
	"auction-bidding/pkg/logger"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

type closingConn struct {
	auctionID string
	closed    bool
}

func (c *closingConn) Send(message interface{}) error { return nil }
func (c *closingConn) Close() error                   { c.closed = true; return nil }
func (c *closingConn) UserID() string                 { return "watcher" }
func (c *closingConn) AuctionID() string              { return c.auctionID }

func TestEventListener_BroadcastsAndCloses(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	broadcaster := mocks.NewMockAuctionBroadcaster(ctrl)
	connManager := websocket.NewConnectionManager(logger.NewNop())
	conn := &closingConn{auctionID: "a1"}
	require.NoError(t, connManager.RegisterConnection("watcher", "a1", conn))
	listener := NewEventListener(connManager, broadcaster, logger.NewNop())

	broadcaster.EXPECT().BroadcastToAuction(gomock.Any(), "a1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, msg interface{}) error {
			require.Equal(t, "bid_update", msg.(map[string]interface{})["type"])
			return nil
		})
	require.NoError(t, listener.HandleBidEvent(&domain.BidEvent{
		Type: domain.BidAccepted, AuctionID: "a1", UserID: "x", Amount: dec("150"), Timestamp: start,
	}))
	require.False(t, conn.closed)

	require.NoError(t, listener.HandleBidEvent(&domain.BidEvent{Type: domain.BidRejected, AuctionID: "a1"}))

	broadcaster.EXPECT().BroadcastToAuction(gomock.Any(), "a1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, msg interface{}) error {
			payload := msg.(map[string]interface{})
			require.Equal(t, "auction_settled", payload["type"])
			require.Equal(t, "x", payload["winner_id"])
			return nil
		})
	require.NoError(t, listener.HandleBidEvent(&domain.BidEvent{
		Type: domain.AuctionSettled, AuctionID: "a1", WinnerID: "x", Amount: dec("150"), Timestamp: start.Add(time.Minute),
	}))
	require.True(t, conn.closed)
	require.Empty(t, connManager.GetConnectionsForAuction("a1"))

	require.Error(t, listener.HandleBidEvent(&domain.BidEvent{Type: "bogus", AuctionID: "a1"}))
}

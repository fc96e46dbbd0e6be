package services

import (
	"context"
	"errors"
	"testing"

	"auction-bidding/internal/domain"
	"auction-bidding/internal/domain/mocks"
	"auction-bidding/pkg/logger"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsService_Record(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockEventRepository(ctrl)
	as := NewAnalyticsService(repo, logger.NewNop())

	ev := &domain.BidEvent{Type: domain.BidRejected, AuctionID: "a1", UserID: "x", Reason: "bid_too_low"}
	repo.EXPECT().SaveBidEvent(gomock.Any(), ev).Return(nil)
	require.NoError(t, as.Record(ev))

	repo.EXPECT().SaveBidEvent(gomock.Any(), ev).Return(errors.New("db down"))
	require.Error(t, as.Record(ev))
}

func TestAnalyticsService_Summarize(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockEventRepository(ctrl)
	as := NewAnalyticsService(repo, logger.NewNop())

	repo.EXPECT().GetBidEvents(gomock.Any(), "a1").Return([]*domain.BidEvent{
		{Type: domain.BidAccepted, AuctionID: "a1", UserID: "x", Amount: dec("150")},
		{Type: domain.BidRejected, AuctionID: "a1", UserID: "y", Amount: dec("150"), Reason: "bid_too_low"},
		{Type: domain.BidAccepted, AuctionID: "a1", UserID: "y", Amount: dec("151")},
		{Type: domain.BidAccepted, AuctionID: "a1", UserID: "x", Amount: dec("160")},
		{Type: domain.BidRejected, AuctionID: "a1", UserID: "x", Amount: dec("500"), Reason: "auction_closed"},
		{Type: domain.AuctionSettled, AuctionID: "a1", WinnerID: "x", Amount: dec("160")},
	}, nil)

	summary, err := as.Summarize(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, 3, summary.AcceptedBids)
	require.Equal(t, 2, summary.RejectedBids)
	require.Equal(t, map[string]int{"bid_too_low": 1, "auction_closed": 1}, summary.RejectionsByCause)
	require.Equal(t, 2, summary.DistinctBidders)
	require.True(t, summary.HighestAmount.Equal(dec("160")))
	require.True(t, summary.Settled)
	require.Equal(t, "x", summary.WinnerID)
}

func TestAnalyticsService_SummarizeError(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockEventRepository(ctrl)
	as := NewAnalyticsService(repo, logger.NewNop())

	repo.EXPECT().GetBidEvents(gomock.Any(), "a1").Return(nil, errors.New("db down"))
	_, err := as.Summarize(context.Background(), "a1")
	require.Error(t, err)
}

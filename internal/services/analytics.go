package services

import (
	"context"
	"fmt"
	"time"

	"auction-bidding/internal/domain"
	"auction-bidding/pkg/logger"

	"github.com/shopspring/decimal"
)

// AnalyticsService records every bidding event into the audit trail and
// summarizes it per auction.
type AnalyticsService struct {
	repo    domain.EventRepository
	timeout time.Duration
	log     logger.Logger
}

type AuctionSummary struct {
	AuctionID         string
	AcceptedBids      int
	RejectedBids      int
	RejectionsByCause map[string]int
	DistinctBidders   int
	HighestAmount     decimal.Decimal
	WinnerID          string
	Settled           bool
}

func NewAnalyticsService(repo domain.EventRepository, log logger.Logger) *AnalyticsService {
	return &AnalyticsService{
		repo:    repo,
		timeout: 5 * time.Second,
		log:     log.With("component", "analytics"),
	}
}

func (as *AnalyticsService) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	as.log.Info("Starting analytics service")
	return subscriber.SubscribeToBidEvents(ctx, as.Record)
}

func (as *AnalyticsService) Record(event *domain.BidEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), as.timeout)
	defer cancel()

	as.log.Debug("Storing bid event", "type", event.Type, "auction_id", event.AuctionID, "user_id", event.UserID)
	if err := as.repo.SaveBidEvent(ctx, event); err != nil {
		return fmt.Errorf("saving %s event for %s: %w", event.Type, event.AuctionID, err)
	}
	return nil
}

func (as *AnalyticsService) Summarize(ctx context.Context, auctionID string) (*AuctionSummary, error) {
	events, err := as.repo.GetBidEvents(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("loading events for %s: %w", auctionID, err)
	}

	summary := &AuctionSummary{
		AuctionID:         auctionID,
		RejectionsByCause: map[string]int{},
	}
	bidders := map[string]struct{}{}
	for _, ev := range events {
		switch ev.Type {
		case domain.BidAccepted:
			summary.AcceptedBids++
			bidders[ev.UserID] = struct{}{}
			if ev.Amount.GreaterThan(summary.HighestAmount) {
				summary.HighestAmount = ev.Amount
			}
		case domain.BidRejected:
			summary.RejectedBids++
			summary.RejectionsByCause[ev.Reason]++
		case domain.AuctionSettled:
			summary.Settled = true
			summary.WinnerID = ev.WinnerID
		}
	}
	summary.DistinctBidders = len(bidders)
	return summary, nil
}

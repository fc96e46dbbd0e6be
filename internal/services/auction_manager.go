package services

import (
	"context"
	"fmt"
	"time"

	"auction-bidding/internal/domain"
	"auction-bidding/internal/metrics"
	"auction-bidding/pkg/logger"
	"auction-bidding/pkg/utils"

	"github.com/shopspring/decimal"
)

// AuctionManager owns the auction lifecycle. It is the only component that
// settles auctions, lazily on access or from the periodic sweep; both paths go
// through the store's single Settle primitive.
type AuctionManager struct {
	store     domain.Store
	eventPub  domain.EventPublisher
	clock     domain.Clock
	precision int32
	batchSize int
	log       logger.Logger
}

func NewAuctionManager(
	store domain.Store,
	eventPub domain.EventPublisher,
	clock domain.Clock,
	precision int32,
	batchSize int,
	log logger.Logger,
) *AuctionManager {
	return &AuctionManager{
		store:     store,
		eventPub:  eventPub,
		clock:     clock,
		precision: precision,
		batchSize: batchSize,
		log:       log.With("component", "auction_manager"),
	}
}

// CreateAuction records a new active auction. Duration policy (close time in
// the future) belongs to the caller.
func (am *AuctionManager) CreateAuction(ctx context.Context, sellerID string, startingPrice decimal.Decimal, closeTime time.Time) (*domain.Auction, error) {
	if sellerID == "" {
		return nil, fmt.Errorf("%w: seller id is required", domain.ErrInvalidAuction)
	}
	if err := domain.ValidateAmount(startingPrice, am.precision); err != nil {
		return nil, fmt.Errorf("%w: starting price: %v", domain.ErrInvalidAuction, err)
	}

	now := am.clock.Now()
	auction := &domain.Auction{
		ID:            utils.GenerateID("auction"),
		SellerID:      sellerID,
		StartingPrice: startingPrice,
		CurrentPrice:  startingPrice,
		CloseTime:     closeTime.UTC(),
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := am.store.CreateAuction(ctx, auction); err != nil {
		return nil, fmt.Errorf("creating auction: %w", err)
	}

	am.log.Info("Auction created", "auction_id", auction.ID, "seller_id", sellerID,
		"starting_price", startingPrice.String(), "close_time", auction.CloseTime)
	return auction, nil
}

// Evaluate returns the auction after settling it if its close time has passed.
// Repeated calls on a settled auction are no-ops.
func (am *AuctionManager) Evaluate(ctx context.Context, auctionID string) (*domain.Auction, error) {
	auction, err := am.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	now := am.clock.Now()
	if !auction.IsActive || !domain.IsExpired(auction, now) {
		return auction, nil
	}
	auction, _, err = am.settle(ctx, auctionID, now)
	return auction, err
}

func (am *AuctionManager) settle(ctx context.Context, auctionID string, now time.Time) (*domain.Auction, bool, error) {
	auction, transitioned, err := am.store.Settle(ctx, auctionID, now)
	if err != nil {
		am.log.Error("Failed to settle auction", "auction_id", auctionID, "error", err)
		return nil, false, fmt.Errorf("settling auction %s: %w", auctionID, err)
	}
	if !transitioned {
		return auction, false, nil
	}

	metrics.AuctionSettled(auction.HasWinner())
	am.log.Info("Auction settled", "auction_id", auctionID, "winner_id", auction.WinnerID,
		"final_price", auction.CurrentPrice.String())

	if err := am.eventPub.PublishBiddingEvent(ctx, &domain.BidEvent{
		Type:      domain.AuctionSettled,
		AuctionID: auctionID,
		Amount:    auction.CurrentPrice,
		WinnerID:  auction.WinnerID,
		Timestamp: now,
	}); err != nil {
		am.log.Warn("Failed to publish settlement event", "auction_id", auctionID, "error", err)
	}
	return auction, true, nil
}

// GetAuctionState evaluates the lifecycle and returns the current read model.
func (am *AuctionManager) GetAuctionState(ctx context.Context, auctionID string) (*domain.AuctionState, error) {
	auction, err := am.Evaluate(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	highest, err := am.store.Highest(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("reading highest bid: %w", err)
	}

	return &domain.AuctionState{
		AuctionID:     auction.ID,
		SellerID:      auction.SellerID,
		StartingPrice: auction.StartingPrice,
		CurrentPrice:  auction.CurrentPrice,
		CloseTime:     auction.CloseTime,
		IsActive:      auction.IsActive,
		WinnerID:      auction.WinnerID,
		HighestBid:    highest,
		TimeRemaining: domain.TimeRemaining(auction, am.clock.Now()),
	}, nil
}

// SweepExpired settles one batch of auctions past their close time and
// returns how many this call transitioned. A failure on one auction does not
// stop the batch.
func (am *AuctionManager) SweepExpired(ctx context.Context) (int, error) {
	now := am.clock.Now()
	ids, err := am.store.ListExpired(ctx, now, am.batchSize)
	if err != nil {
		return 0, fmt.Errorf("listing expired auctions: %w", err)
	}

	settled := 0
	for _, id := range ids {
		_, transitioned, err := am.settle(ctx, id, now)
		if err != nil {
			continue
		}
		if transitioned {
			settled++
		}
	}
	if len(ids) > 0 {
		am.log.Info("Sweep finished", "expired", len(ids), "settled", settled)
	}
	return settled, nil
}

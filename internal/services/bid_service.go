package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-bidding/internal/config"
	"auction-bidding/internal/domain"
	"auction-bidding/internal/metrics"
	"auction-bidding/pkg/logger"
	"auction-bidding/pkg/utils"

	"github.com/avast/retry-go"
	"github.com/shopspring/decimal"
)

// BidService validates bid submissions and commits accepted ones through the
// store's compare-and-swap. Lost races are retried a bounded number of times.
type BidService struct {
	store          domain.Store
	auctionManager *AuctionManager
	eventPub       domain.EventPublisher
	clock          domain.Clock
	maxAttempts    uint
	retryDelay     time.Duration
	precision      int32
	log            logger.Logger
}

func NewBidService(
	store domain.Store,
	auctionManager *AuctionManager,
	eventPub domain.EventPublisher,
	clock domain.Clock,
	cfg config.BiddingConfig,
	log logger.Logger,
) *BidService {
	attempts := cfg.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	return &BidService{
		store:          store,
		auctionManager: auctionManager,
		eventPub:       eventPub,
		clock:          clock,
		maxAttempts:    attempts,
		retryDelay:     cfg.RetryDelay,
		precision:      cfg.Precision,
		log:            log.With("component", "bid_service"),
	}
}

// SubmitBid returns the committed bid, a *domain.Rejection for any expected
// refusal, or a wrapped storage error.
func (s *BidService) SubmitBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (*domain.Bid, error) {
	bidID := utils.GenerateID("bid")
	attempt := 0

	var (
		committed *domain.Bid
		observed  decimal.Decimal
	)
	err := retry.Do(
		func() error {
			if attempt > 0 {
				metrics.CommitRetried()
			}
			attempt++

			var err error
			committed, observed, err = s.tryCommit(ctx, bidID, auctionID, bidderID, amount)
			return err
		},
		retry.Attempts(s.maxAttempts),
		retry.Delay(s.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, domain.ErrPriceChanged)
		}),
		retry.Context(ctx),
	)

	if errors.Is(err, domain.ErrPriceChanged) {
		err = domain.Reject(domain.ReasonConcurrencyConflict, auctionID, observed,
			fmt.Sprintf("gave up after %d attempts", attempt))
	}
	if err != nil {
		s.rejected(ctx, auctionID, bidderID, amount, err)
		return nil, err
	}

	metrics.BidAccepted()
	s.log.Info("Bid accepted", "auction_id", auctionID, "user_id", bidderID,
		"amount", committed.Amount.String(), "bid_id", committed.ID, "attempts", attempt)
	if err := s.eventPub.PublishBiddingEvent(ctx, &domain.BidEvent{
		Type:      domain.BidAccepted,
		AuctionID: auctionID,
		BidID:     committed.ID,
		UserID:    bidderID,
		Amount:    committed.Amount,
		Timestamp: committed.SubmittedAt,
	}); err != nil {
		s.log.Warn("Failed to publish bid event", "auction_id", auctionID, "error", err)
	}
	return committed, nil
}

// tryCommit runs the acceptance checks against a fresh read and attempts the
// commit. It returns domain.ErrPriceChanged when the read went stale, along
// with the price that read observed.
func (s *BidService) tryCommit(ctx context.Context, bidID, auctionID, bidderID string, amount decimal.Decimal) (*domain.Bid, decimal.Decimal, error) {
	auction, err := s.store.GetAuction(ctx, auctionID)
	if errors.Is(err, domain.ErrAuctionNotFound) {
		return nil, decimal.Zero, domain.Reject(domain.ReasonNotFound, auctionID, decimal.Zero, "")
	}
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("reading auction %s: %w", auctionID, err)
	}
	price := auction.CurrentPrice

	if !auction.IsActive || domain.IsExpired(auction, s.clock.Now()) {
		return nil, price, s.closed(ctx, auction.ID, price)
	}
	if bidderID == auction.SellerID {
		return nil, price, domain.Reject(domain.ReasonSelfBidForbidden, auctionID, price, "")
	}
	if err := domain.ValidateAmount(amount, s.precision); err != nil {
		return nil, price, domain.Reject(domain.ReasonValidation, auctionID, price, err.Error())
	}
	if !amount.GreaterThan(price) {
		return nil, price, tooLow(auctionID, price)
	}

	committed, err := s.store.CommitBid(ctx, &domain.Bid{
		ID:        bidID,
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    amount,
	}, price)

	switch {
	case err == nil:
		return committed, price, nil
	case errors.Is(err, domain.ErrPriceChanged):
		return nil, price, err
	case errors.Is(err, domain.ErrAuctionClosed):
		return nil, price, s.closed(ctx, auctionID, price)
	case errors.Is(err, domain.ErrBidTooLow):
		// outbid between the read and the commit
		latest := s.latestPrice(ctx, auctionID, price)
		return nil, latest, tooLow(auctionID, latest)
	case errors.Is(err, domain.ErrAuctionNotFound):
		return nil, price, domain.Reject(domain.ReasonNotFound, auctionID, decimal.Zero, "")
	default:
		return nil, price, fmt.Errorf("committing bid on %s: %w", auctionID, err)
	}
}

func tooLow(auctionID string, price decimal.Decimal) *domain.Rejection {
	return domain.Reject(domain.ReasonBidTooLow, auctionID, price, "must exceed "+price.String())
}

// latestPrice re-reads the current price, falling back when the read fails.
func (s *BidService) latestPrice(ctx context.Context, auctionID string, fallback decimal.Decimal) decimal.Decimal {
	auction, err := s.store.GetAuction(ctx, auctionID)
	if err != nil {
		return fallback
	}
	return auction.CurrentPrice
}

// closed settles the auction if this is the first access after expiry and
// builds the AuctionClosed rejection.
func (s *BidService) closed(ctx context.Context, auctionID string, price decimal.Decimal) error {
	if _, err := s.auctionManager.Evaluate(ctx, auctionID); err != nil {
		s.log.Warn("Lazy settlement failed", "auction_id", auctionID, "error", err)
	}
	return domain.Reject(domain.ReasonAuctionClosed, auctionID, price, "")
}

func (s *BidService) rejected(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal, err error) {
	rejection, ok := domain.AsRejection(err)
	if !ok {
		s.log.Error("Bid submission failed", "auction_id", auctionID, "user_id", bidderID,
			"amount", amount.String(), "error", err)
		return
	}

	metrics.BidRejected(string(rejection.Reason))
	s.log.Info("Bid rejected", "auction_id", auctionID, "user_id", bidderID,
		"amount", amount.String(), "reason", rejection.Reason)
	if err := s.eventPub.PublishBiddingEvent(ctx, &domain.BidEvent{
		Type:      domain.BidRejected,
		AuctionID: auctionID,
		UserID:    bidderID,
		Amount:    amount,
		Reason:    string(rejection.Reason),
		Timestamp: s.clock.Now(),
	}); err != nil {
		s.log.Warn("Failed to publish bid event", "auction_id", auctionID, "error", err)
	}
}

// GetBidHistory returns accepted bids by amount descending. limit <= 0 means all.
func (s *BidService) GetBidHistory(ctx context.Context, auctionID string, limit int) ([]*domain.Bid, error) {
	bids, err := s.store.History(ctx, auctionID, limit)
	if errors.Is(err, domain.ErrAuctionNotFound) {
		return nil, domain.Reject(domain.ReasonNotFound, auctionID, decimal.Zero, "")
	}
	if err != nil {
		return nil, fmt.Errorf("reading bid history: %w", err)
	}
	return bids, nil
}

// ListBidsByBidder returns the bidder's accepted bids, newest first.
func (s *BidService) ListBidsByBidder(ctx context.Context, bidderID string) ([]*domain.Bid, error) {
	bids, err := s.store.BidsByBidder(ctx, bidderID)
	if err != nil {
		return nil, fmt.Errorf("reading bids of %s: %w", bidderID, err)
	}
	return bids, nil
}

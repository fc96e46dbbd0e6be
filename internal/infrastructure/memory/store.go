package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"auction-bidding/internal/domain"

	"github.com/puzpuzpuz/xsync/v2"
	"github.com/shopspring/decimal"
)

// auctionCell owns one auction and its ledger. All mutation of either happens
// under mu, so different auctions never contend with each other.
type auctionCell struct {
	mu      sync.Mutex
	auction domain.Auction
	bids    []*domain.Bid // ledger insertion order, amounts strictly increasing
}

// Store is a process-local implementation of domain.Store.
type Store struct {
	clock    domain.Clock
	auctions *xsync.MapOf[string, *auctionCell]
	byBidder *xsync.MapOf[string, *bidderIndex]
}

type bidderIndex struct {
	mu   sync.RWMutex
	bids []*domain.Bid
}

func NewStore(clock domain.Clock) *Store {
	return &Store{
		clock:    clock,
		auctions: xsync.NewMapOf[*auctionCell](),
		byBidder: xsync.NewMapOf[*bidderIndex](),
	}
}

func (s *Store) CreateAuction(ctx context.Context, auction *domain.Auction) error {
	cell := &auctionCell{auction: *auction}
	if _, loaded := s.auctions.LoadOrStore(auction.ID, cell); loaded {
		return fmt.Errorf("auction %s already exists", auction.ID)
	}
	return nil
}

func (s *Store) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	cell, ok := s.auctions.Load(auctionID)
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	cell.mu.Lock()
	defer cell.mu.Unlock()
	a := cell.auction
	return &a, nil
}

func (s *Store) CommitBid(ctx context.Context, bid *domain.Bid, expectedPrice decimal.Decimal) (*domain.Bid, error) {
	cell, ok := s.auctions.Load(bid.AuctionID)
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}

	cell.mu.Lock()
	defer cell.mu.Unlock()

	now := s.clock.Now()
	if !cell.auction.IsActive || domain.IsExpired(&cell.auction, now) {
		return nil, domain.ErrAuctionClosed
	}
	if !bid.Amount.GreaterThan(cell.auction.CurrentPrice) {
		return nil, domain.ErrBidTooLow
	}
	if !cell.auction.CurrentPrice.Equal(expectedPrice) {
		return nil, domain.ErrPriceChanged
	}

	committed := *bid
	committed.SubmittedAt = now
	if n := len(cell.bids); n > 0 && cell.bids[n-1].SubmittedAt.After(now) {
		committed.SubmittedAt = cell.bids[n-1].SubmittedAt
	}

	cell.auction.CurrentPrice = committed.Amount
	cell.auction.UpdatedAt = committed.SubmittedAt
	cell.bids = append(cell.bids, &committed)

	idx, _ := s.byBidder.LoadOrCompute(committed.BidderID, func() *bidderIndex { return &bidderIndex{} })
	idx.mu.Lock()
	idx.bids = append(idx.bids, &committed)
	idx.mu.Unlock()

	out := committed
	return &out, nil
}

func (s *Store) Settle(ctx context.Context, auctionID string, now time.Time) (*domain.Auction, bool, error) {
	cell, ok := s.auctions.Load(auctionID)
	if !ok {
		return nil, false, domain.ErrAuctionNotFound
	}

	cell.mu.Lock()
	defer cell.mu.Unlock()

	if !cell.auction.IsActive || !domain.IsExpired(&cell.auction, now) {
		a := cell.auction
		return &a, false, nil
	}

	cell.auction.IsActive = false
	if n := len(cell.bids); n > 0 {
		cell.auction.WinnerID = cell.bids[n-1].BidderID
	}
	cell.auction.UpdatedAt = now

	a := cell.auction
	return &a, true, nil
}

func (s *Store) ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	type expired struct {
		id        string
		closeTime time.Time
	}
	var found []expired
	s.auctions.Range(func(id string, cell *auctionCell) bool {
		cell.mu.Lock()
		if cell.auction.IsActive && domain.IsExpired(&cell.auction, now) {
			found = append(found, expired{id: id, closeTime: cell.auction.CloseTime})
		}
		cell.mu.Unlock()
		return true
	})

	sort.Slice(found, func(i, j int) bool {
		return found[i].closeTime.Before(found[j].closeTime)
	})
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}

	ids := make([]string, 0, len(found))
	for _, e := range found {
		ids = append(ids, e.id)
	}
	return ids, nil
}

func (s *Store) History(ctx context.Context, auctionID string, limit int) ([]*domain.Bid, error) {
	cell, ok := s.auctions.Load(auctionID)
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}

	cell.mu.Lock()
	defer cell.mu.Unlock()

	// Amounts rise with insertion order, so reversing yields amount-descending.
	n := len(cell.bids)
	if limit > 0 && limit < n {
		n = limit
	}
	history := make([]*domain.Bid, 0, n)
	for i := len(cell.bids) - 1; i >= 0 && len(history) < n; i-- {
		b := *cell.bids[i]
		history = append(history, &b)
	}
	return history, nil
}

func (s *Store) Highest(ctx context.Context, auctionID string) (*domain.Bid, error) {
	cell, ok := s.auctions.Load(auctionID)
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}

	cell.mu.Lock()
	defer cell.mu.Unlock()

	if len(cell.bids) == 0 {
		return nil, nil
	}
	b := *cell.bids[len(cell.bids)-1]
	return &b, nil
}

func (s *Store) BidsByBidder(ctx context.Context, bidderID string) ([]*domain.Bid, error) {
	idx, ok := s.byBidder.Load(bidderID)
	if !ok {
		return []*domain.Bid{}, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	bids := make([]*domain.Bid, 0, len(idx.bids))
	for _, b := range idx.bids {
		c := *b
		bids = append(bids, &c)
	}
	sort.SliceStable(bids, func(i, j int) bool {
		return bids[i].SubmittedAt.After(bids[j].SubmittedAt)
	})
	return bids, nil
}

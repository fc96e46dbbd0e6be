package domain

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -destination=mocks/mock_interfaces.go -package=mocks auction-bidding/internal/domain Store,EventPublisher,LeaderElection,AuctionBroadcaster,EventRepository

// AuctionStore holds auction records and the two atomic mutation paths.
type AuctionStore interface {
	CreateAuction(ctx context.Context, auction *Auction) error
	GetAuction(ctx context.Context, auctionID string) (*Auction, error)
	// CommitBid atomically re-checks that the auction is open at commit time and
	// that its current price still equals expectedPrice, then raises the price to
	// bid.Amount and appends bid to the ledger. SubmittedAt is assigned here.
	CommitBid(ctx context.Context, bid *Bid, expectedPrice decimal.Decimal) (*Bid, error)
	// Settle closes an active auction whose close time is at or before now and
	// assigns the highest bidder as winner. It reports whether this call made
	// the transition; settled or still-open auctions are returned unchanged.
	Settle(ctx context.Context, auctionID string, now time.Time) (*Auction, bool, error)
	// ListExpired returns ids of auctions still active with closeTime <= now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// BidLedger is the append-only record of accepted bids.
type BidLedger interface {
	// History is ordered by amount descending, ties broken by earlier SubmittedAt.
	History(ctx context.Context, auctionID string, limit int) ([]*Bid, error)
	// Highest returns nil when no bid was ever accepted.
	Highest(ctx context.Context, auctionID string) (*Bid, error)
	// BidsByBidder is ordered newest first.
	BidsByBidder(ctx context.Context, bidderID string) ([]*Bid, error)
}

type Store interface {
	AuctionStore
	BidLedger
}

// Event interfaces
type EventPublisher interface {
	PublishBiddingEvent(ctx context.Context, event *BidEvent) error
}

type EventSubscriber interface {
	SubscribeToBidEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *BidEvent) error

// EventRepository persists the bid event audit trail.
type EventRepository interface {
	SaveBidEvent(ctx context.Context, event *BidEvent) error
	GetBidEvents(ctx context.Context, auctionID string) ([]*BidEvent, error)
}

// Notification interfaces
type UserNotifier interface {
	NotifyUser(ctx context.Context, userID string, message interface{}) error
}

type AuctionBroadcaster interface {
	BroadcastToAuction(ctx context.Context, auctionID string, message interface{}) error
}

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// IdentityProvider resolves the caller of a request. The core never derives
// identities itself.
type IdentityProvider interface {
	Authenticate(r *http.Request) (*Identity, error)
}

// WebSocket interfaces
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	UserID() string
	AuctionID() string
}

type ConnectionManager interface {
	RegisterConnection(userID, auctionID string, conn WebSocketConnection) error
	UnregisterConnection(userID, auctionID string) error
	GetConnectionsForAuction(auctionID string) []WebSocketConnection
	GetConnectionsForUser(userID string) []WebSocketConnection
	BroadcastToAuction(auctionID string, message interface{}) error
	NotifyUser(userID string, message interface{}) error
	CloseAndUnregisterConnections(auctionID string) error
}

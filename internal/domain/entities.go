package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Auction struct {
	ID            string
	SellerID      string
	StartingPrice decimal.Decimal
	CurrentPrice  decimal.Decimal
	CloseTime     time.Time
	IsActive      bool
	WinnerID      string // empty until settled with at least one bid
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Status derives the lifecycle state from the stored flags.
func (a *Auction) Status() AuctionStatus {
	if a.IsActive {
		return StatusActive
	}
	return StatusSettled
}

// HasWinner reports whether settlement assigned a winner.
func (a *Auction) HasWinner() bool {
	return !a.IsActive && a.WinnerID != ""
}

type AuctionStatus int

const (
	StatusActive AuctionStatus = iota
	StatusSettled
)

func (s AuctionStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// Bid is an accepted price offer. It is never mutated after the commit that created it.
type Bid struct {
	ID          string
	AuctionID   string
	BidderID    string
	Amount      decimal.Decimal
	SubmittedAt time.Time
}

// AuctionState is the read model returned to callers of GetAuctionState.
type AuctionState struct {
	AuctionID     string
	SellerID      string
	StartingPrice decimal.Decimal
	CurrentPrice  decimal.Decimal
	CloseTime     time.Time
	IsActive      bool
	WinnerID      string
	HighestBid    *Bid
	TimeRemaining time.Duration
}

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// Identity is supplied by the identity collaborator and trusted as is.
type Identity struct {
	UserID string
	Role   Role
}

type BidEvent struct {
	Type      BidEventType    `json:"type"`
	AuctionID string          `json:"auction_id"`
	BidID     string          `json:"bid_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason,omitempty"`
	WinnerID  string          `json:"winner_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

type BidEventType string

const (
	BidAccepted    BidEventType = "bid_accepted"
	BidRejected    BidEventType = "bid_rejected"
	AuctionSettled BidEventType = "auction_settled"
)

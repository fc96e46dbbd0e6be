package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrAuctionNotFound     = errors.New("auction not found")
	ErrAuctionClosed       = errors.New("auction is closed")
	ErrSelfBidForbidden    = errors.New("seller cannot bid on own auction")
	ErrBidTooLow           = errors.New("bid amount too low")
	ErrInvalidAmount       = errors.New("invalid bid amount")
	ErrConcurrencyConflict = errors.New("too much contention on auction, retry later")
	ErrInvalidAuction      = errors.New("invalid auction parameters")
)

// ErrPriceChanged is returned by storage when the compare-and-swap on the
// current price observed a different value than expected.
var ErrPriceChanged = errors.New("current price changed since read")

type RejectionReason string

const (
	ReasonNotFound            RejectionReason = "not_found"
	ReasonAuctionClosed       RejectionReason = "auction_closed"
	ReasonSelfBidForbidden    RejectionReason = "self_bid_forbidden"
	ReasonBidTooLow           RejectionReason = "bid_too_low"
	ReasonValidation          RejectionReason = "validation_error"
	ReasonConcurrencyConflict RejectionReason = "concurrency_conflict"
)

var reasonErrors = map[RejectionReason]error{
	ReasonNotFound:            ErrAuctionNotFound,
	ReasonAuctionClosed:       ErrAuctionClosed,
	ReasonSelfBidForbidden:    ErrSelfBidForbidden,
	ReasonBidTooLow:           ErrBidTooLow,
	ReasonValidation:          ErrInvalidAmount,
	ReasonConcurrencyConflict: ErrConcurrencyConflict,
}

// Rejection is an expected, recoverable outcome of a bid submission.
type Rejection struct {
	Reason       RejectionReason
	AuctionID    string
	CurrentPrice decimal.Decimal
	Detail       string
}

func (r *Rejection) Error() string {
	msg := fmt.Sprintf("bid rejected for auction %s: %s", r.AuctionID, r.Unwrap())
	if r.Detail != "" {
		msg += " (" + r.Detail + ")"
	}
	return msg
}

func (r *Rejection) Unwrap() error {
	return reasonErrors[r.Reason]
}

func Reject(reason RejectionReason, auctionID string, currentPrice decimal.Decimal, detail string) *Rejection {
	return &Rejection{
		Reason:       reason,
		AuctionID:    auctionID,
		CurrentPrice: currentPrice,
		Detail:       detail,
	}
}

// AsRejection extracts a Rejection from err, if any.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// ReasonFor classifies a storage-level sentinel into its rejection reason.
func ReasonFor(err error) (RejectionReason, bool) {
	switch {
	case errors.Is(err, ErrAuctionNotFound):
		return ReasonNotFound, true
	case errors.Is(err, ErrAuctionClosed):
		return ReasonAuctionClosed, true
	case errors.Is(err, ErrSelfBidForbidden):
		return ReasonSelfBidForbidden, true
	case errors.Is(err, ErrBidTooLow):
		return ReasonBidTooLow, true
	case errors.Is(err, ErrInvalidAmount):
		return ReasonValidation, true
	case errors.Is(err, ErrConcurrencyConflict):
		return ReasonConcurrencyConflict, true
	}
	return "", false
}

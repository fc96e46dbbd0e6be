package domain

import "time"

// IsExpired reports whether the auction's bidding window is over at now.
// The close instant itself already counts as expired.
func IsExpired(auction *Auction, now time.Time) bool {
	return !now.Before(auction.CloseTime)
}

// TimeRemaining is zero once the auction is closed or expired.
func TimeRemaining(auction *Auction, now time.Time) time.Duration {
	if !auction.IsActive || IsExpired(auction, now) {
		return 0
	}
	return auction.CloseTime.Sub(now)
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

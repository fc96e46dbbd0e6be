package domain

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var closeAt = time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)

func TestIsExpired(t *testing.T) {
	a := &Auction{CloseTime: closeAt, IsActive: true}

	assert.False(t, IsExpired(a, closeAt.Add(-time.Nanosecond)))
	assert.True(t, IsExpired(a, closeAt), "the close instant counts as expired")
	assert.True(t, IsExpired(a, closeAt.Add(time.Second)))
}

func TestTimeRemaining(t *testing.T) {
	a := &Auction{CloseTime: closeAt, IsActive: true}

	assert.Equal(t, 90*time.Second, TimeRemaining(a, closeAt.Add(-90*time.Second)))
	assert.Zero(t, TimeRemaining(a, closeAt))
	assert.Zero(t, TimeRemaining(a, closeAt.Add(time.Hour)))

	a.IsActive = false
	assert.Zero(t, TimeRemaining(a, closeAt.Add(-time.Hour)))
}

func TestAuctionStatus(t *testing.T) {
	a := &Auction{IsActive: true}
	assert.Equal(t, "active", a.Status().String())
	assert.False(t, a.HasWinner())

	a.IsActive = false
	assert.Equal(t, "settled", a.Status().String())
	assert.False(t, a.HasWinner())

	a.WinnerID = "x"
	assert.True(t, a.HasWinner())
}

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		amount string
		ok     bool
	}{
		{"150", true},
		{"150.5", true},
		{"150.55", true},
		{"150.555", false},
		{"0", false},
		{"-1", false},
		{"0.01", true},
	}
	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			err := ValidateAmount(decimal.RequireFromString(tt.amount), DefaultPrecision)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount("151.25")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("151.25")))

	_, err = ParseAmount("abc")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestAmountFromFloat(t *testing.T) {
	d, err := AmountFromFloat(150.5)
	require.NoError(t, err)
	assert.Equal(t, "150.5", d.String())

	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := AmountFromFloat(f)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	}
}

func TestRejection(t *testing.T) {
	r := Reject(ReasonBidTooLow, "a1", decimal.RequireFromString("150"), "must exceed 150")
	wrapped := fmt.Errorf("placing bid: %w", r)

	assert.ErrorIs(t, wrapped, ErrBidTooLow)
	assert.False(t, errors.Is(wrapped, ErrAuctionClosed))
	assert.Contains(t, r.Error(), "a1")
	assert.Contains(t, r.Error(), "must exceed 150")

	got, ok := AsRejection(wrapped)
	require.True(t, ok)
	assert.Equal(t, ReasonBidTooLow, got.Reason)
	assert.True(t, got.CurrentPrice.Equal(decimal.RequireFromString("150")))

	_, ok = AsRejection(errors.New("boom"))
	assert.False(t, ok)
}

func TestReasonFor(t *testing.T) {
	for reason, sentinel := range reasonErrors {
		got, ok := ReasonFor(fmt.Errorf("store: %w", sentinel))
		require.True(t, ok)
		assert.Equal(t, reason, got)
	}

	_, ok := ReasonFor(ErrPriceChanged)
	assert.False(t, ok)
}

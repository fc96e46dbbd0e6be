package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// DefaultPrecision is the number of decimal places a price may carry.
const DefaultPrecision int32 = 2

// ValidateAmount checks that amount is positive and carries no more than
// precision decimal places.
func ValidateAmount(amount decimal.Decimal, precision int32) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: must be positive, got %s", ErrInvalidAmount, amount)
	}
	if !amount.Equal(amount.Truncate(precision)) {
		return fmt.Errorf("%w: at most %d decimal places allowed, got %s", ErrInvalidAmount, precision, amount)
	}
	return nil
}

// ParseAmount parses a decimal string as sent by clients.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, s)
	}
	return d, nil
}

// AmountFromFloat converts a float amount, refusing NaN and infinities.
func AmountFromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, fmt.Errorf("%w: %v is not finite", ErrInvalidAmount, f)
	}
	return decimal.NewFromFloat(f), nil
}

package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// RateScale is the fixed-point denominator of exchange rates: 1000 means 1:1.
const RateScale = 1000

var rateScale = decimal.NewFromInt(RateScale)

// IsPositiveInteger reports whether d is an integer strictly greater than zero.
func IsPositiveInteger(d decimal.Decimal) bool {
	return d.IsPositive() && d.IsInteger()
}

// ConvertAmount returns floor(amount * rate / RateScale). Amounts and rates are
// non-negative integers so truncation toward zero is the floor.
func ConvertAmount(amount, rate decimal.Decimal) decimal.Decimal {
	q, _ := amount.Mul(rate).QuoRem(rateScale, 0)
	return q
}

// ParseAmount parses a base-10 non-negative integer amount of any size.
func ParseAmount(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("%w: empty amount", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if d.IsNegative() || !d.IsInteger() {
		return decimal.Zero, fmt.Errorf("%w: %s is not a non-negative integer", ErrInvalidAmount, trimmed)
	}
	return d, nil
}

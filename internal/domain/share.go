package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ShareKey addresses one liquidity share entry.
type ShareKey struct {
	Provider Address
	Asset    AssetID
}

// LiquidityShare is a provider's deposited-and-not-withdrawn balance of one asset.
// It is bookkeeping only: swap settlement never consults it.
type LiquidityShare struct {
	Provider Address         `json:"provider"`
	Asset    AssetID         `json:"asset"`
	Amount   decimal.Decimal `json:"amount"`
}

// Key returns the share's storage key.
func (s *LiquidityShare) Key() ShareKey {
	return ShareKey{Provider: s.Provider, Asset: s.Asset}
}

// Credit adds amount to the share.
func (s *LiquidityShare) Credit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: credit of %s", ErrInvalidAmount, amount)
	}
	s.Amount = s.Amount.Add(amount)
	return nil
}

// Debit removes amount from the share. The share is left untouched on error.
func (s *LiquidityShare) Debit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: debit of %s", ErrInvalidAmount, amount)
	}
	if s.Amount.LessThan(amount) {
		return fmt.Errorf("%w: %s/%s need %s, have %s",
			ErrInsufficientShare, s.Provider, s.Asset, amount, s.Amount)
	}
	s.Amount = s.Amount.Sub(amount)
	return nil
}

// VerifyInvariant checks that the share is a non-negative integer.
func (s *LiquidityShare) VerifyInvariant() error {
	if s.Amount.IsNegative() {
		return fmt.Errorf("SHARE_INVARIANT_NEGATIVE: %s/%s = %s", s.Provider, s.Asset, s.Amount)
	}
	if !s.Amount.IsInteger() {
		return fmt.Errorf("SHARE_INVARIANT_FRACTIONAL: %s/%s = %s", s.Provider, s.Asset, s.Amount)
	}
	return nil
}

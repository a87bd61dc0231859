package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"token_swap/internal/domain"

	"github.com/shopspring/decimal"
)

// SetExchangeRate stores the directional rate from -> to, overwriting any prior
// value. Owner only. rate is fixed-point scaled by domain.RateScale.
func (l *Ledger) SetExchangeRate(ctx context.Context, from, to domain.AssetID, rate decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	caller, err := l.requireOwner(ctx)
	if err != nil {
		return l.reject(OpSetExchangeRate, err, slog.String("caller", string(caller)))
	}
	if err := l.validatePair(from, to); err != nil {
		return l.reject(OpSetExchangeRate, err)
	}
	if !domain.IsPositiveInteger(rate) {
		return l.reject(OpSetExchangeRate, fmt.Errorf("%w: rate %s", domain.ErrInvalidAmount, rate))
	}
	if err := l.store.SaveRate(from, to, rate); err != nil {
		return domain.NewOpError(OpSetExchangeRate, err)
	}
	l.logger.Info("exchange rate set",
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("rate", rate.String()),
	)
	return nil
}

// ExchangeRate returns the configured rate for from -> to. A missing or zero
// entry fails with ErrRateNotSet.
func (l *Ledger) ExchangeRate(from, to domain.AssetID) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rate, err := l.exchangeRate(from, to)
	if err != nil {
		return decimal.Zero, domain.NewOpError(OpGetExchangeRate, err)
	}
	return rate, nil
}

// exchangeRate is the single read path for rates, used by swap settlement too.
func (l *Ledger) exchangeRate(from, to domain.AssetID) (decimal.Decimal, error) {
	if err := l.validatePair(from, to); err != nil {
		return decimal.Zero, err
	}
	rate, ok, err := l.store.LoadRate(from, to)
	if err != nil {
		return decimal.Zero, err
	}
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s -> %s", domain.ErrRateNotSet, from, to)
	}
	return rate, nil
}

// Rates lists every stored rate, including zero entries, ordered by pair.
func (l *Ledger) Rates() ([]domain.ExchangeRate, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.store.ListRates()
}

func (l *Ledger) validatePair(from, to domain.AssetID) error {
	if !l.validAsset(from) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidAsset, from)
	}
	if !l.validAsset(to) {
		return fmt.Errorf("%w: %q", domain.ErrInvalidAsset, to)
	}
	return nil
}

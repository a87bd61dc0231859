package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"token_swap/internal/domain"

	"github.com/shopspring/decimal"
)

// AddLiquidity moves amount of asset from the caller into the contract and
// credits the caller's share. It returns the new share.
func (l *Ledger) AddLiquidity(ctx context.Context, asset domain.AssetID, amount decimal.Decimal) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	attrs := []any{slog.String("asset", string(asset)), slog.String("amount", amount.String())}
	caller, err := l.prepareLiquidity(ctx, asset, amount)
	if err != nil {
		return decimal.Zero, l.reject(OpAddLiquidity, err, attrs...)
	}
	share, err := l.loadShare(caller, asset)
	if err != nil {
		return decimal.Zero, domain.NewOpError(OpAddLiquidity, err)
	}
	if err := share.Credit(amount); err != nil {
		return decimal.Zero, l.reject(OpAddLiquidity, err, attrs...)
	}

	if err := l.bank.Transfer(caller, l.contract, asset, amount); err != nil {
		return decimal.Zero, l.reject(OpAddLiquidity, fmt.Errorf("%w: %v", domain.ErrTransferFailed, err), attrs...)
	}
	if err := l.store.SaveShare(caller, asset, share.Amount); err != nil {
		l.refund(OpAddLiquidity, caller, asset, amount)
		return decimal.Zero, domain.NewOpError(OpAddLiquidity, err)
	}

	l.logger.Info("liquidity added",
		slog.String("provider", string(caller)),
		slog.String("asset", string(asset)),
		slog.String("amount", amount.String()),
		slog.String("share", share.Amount.String()),
	)
	l.emit(domain.LiquidityAddedNotification{
		NotificationHeader: domain.NewHeader(l.now()),
		Provider:           caller,
		Asset:              asset,
		Amount:             amount,
	})
	return share.Amount, nil
}

// RemoveLiquidity pays amount of asset out of the contract to the caller and
// debits the caller's share. The share is debited only after the payout has
// succeeded, so a failed transfer leaves it unchanged. It returns the new share.
func (l *Ledger) RemoveLiquidity(ctx context.Context, asset domain.AssetID, amount decimal.Decimal) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	attrs := []any{slog.String("asset", string(asset)), slog.String("amount", amount.String())}
	caller, err := l.prepareLiquidity(ctx, asset, amount)
	if err != nil {
		return decimal.Zero, l.reject(OpRemoveLiquidity, err, attrs...)
	}
	share, err := l.loadShare(caller, asset)
	if err != nil {
		return decimal.Zero, domain.NewOpError(OpRemoveLiquidity, err)
	}
	if err := share.Debit(amount); err != nil {
		return decimal.Zero, l.reject(OpRemoveLiquidity, err, attrs...)
	}

	if err := l.bank.Transfer(l.contract, caller, asset, amount); err != nil {
		return decimal.Zero, l.reject(OpRemoveLiquidity, fmt.Errorf("%w: %v", domain.ErrTransferFailed, err), attrs...)
	}
	if err := l.store.SaveShare(caller, asset, share.Amount); err != nil {
		// Pull the payout back so the share and the pool stay consistent.
		if cerr := l.bank.Transfer(caller, l.contract, asset, amount); cerr != nil {
			l.logger.Error("COMPENSATION_FAILED",
				slog.String("op", OpRemoveLiquidity),
				slog.String("provider", string(caller)),
				slog.Any("error", cerr),
			)
		}
		return decimal.Zero, domain.NewOpError(OpRemoveLiquidity, err)
	}

	l.logger.Info("liquidity removed",
		slog.String("provider", string(caller)),
		slog.String("asset", string(asset)),
		slog.String("amount", amount.String()),
		slog.String("share", share.Amount.String()),
	)
	l.emit(domain.LiquidityRemovedNotification{
		NotificationHeader: domain.NewHeader(l.now()),
		Provider:           caller,
		Asset:              asset,
		Amount:             amount,
	})
	return share.Amount, nil
}

// LiquidityShare returns provider's share of asset, zero when never seen.
func (l *Ledger) LiquidityShare(provider domain.Address, asset domain.AssetID) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.store.LoadShare(provider, asset)
}

// Shares lists every share entry recorded for provider, zero entries included.
func (l *Ledger) Shares(provider domain.Address) ([]domain.LiquidityShare, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.store.ListShares(provider)
}

// prepareLiquidity runs the checks shared by deposits and withdrawals.
func (l *Ledger) prepareLiquidity(ctx context.Context, asset domain.AssetID, amount decimal.Decimal) (domain.Address, error) {
	if err := l.requireActive(); err != nil {
		return "", err
	}
	if !l.validAsset(asset) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidAsset, asset)
	}
	if !domain.IsPositiveInteger(amount) {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidAmount, amount)
	}
	return l.identity.Caller(ctx)
}

func (l *Ledger) loadShare(provider domain.Address, asset domain.AssetID) (*domain.LiquidityShare, error) {
	amount, err := l.store.LoadShare(provider, asset)
	if err != nil {
		return nil, err
	}
	return &domain.LiquidityShare{Provider: provider, Asset: asset, Amount: amount}, nil
}

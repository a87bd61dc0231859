package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"token_swap/internal/domain"

	"github.com/shopspring/decimal"
)

// Swap exchanges fromAmount of fromAsset for floor(fromAmount*rate/1000) of
// toAsset at the configured rate. The only solvency check is the contract's
// held balance of toAsset; liquidity shares are not consulted. A zero payout
// caused by truncation is a valid swap. fromAsset may equal toAsset.
func (l *Ledger) Swap(ctx context.Context, fromAsset domain.AssetID, fromAmount decimal.Decimal, toAsset domain.AssetID) (decimal.Decimal, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	attrs := []any{
		slog.String("from", string(fromAsset)),
		slog.String("to", string(toAsset)),
		slog.String("amount", fromAmount.String()),
	}
	if err := l.requireActive(); err != nil {
		return decimal.Zero, l.reject(OpSwap, err, attrs...)
	}
	toAmount, err := l.price(fromAsset, fromAmount, toAsset)
	if err != nil {
		return decimal.Zero, l.reject(OpSwap, err, attrs...)
	}
	caller, err := l.identity.Caller(ctx)
	if err != nil {
		return decimal.Zero, l.reject(OpSwap, err, attrs...)
	}

	if err := l.bank.Transfer(caller, l.contract, fromAsset, fromAmount); err != nil {
		return decimal.Zero, l.reject(OpSwap, fmt.Errorf("%w: pay-in: %v", domain.ErrTransferFailed, err), attrs...)
	}
	if err := l.bank.Transfer(l.contract, caller, toAsset, toAmount); err != nil {
		l.refund(OpSwap, caller, fromAsset, fromAmount)
		return decimal.Zero, l.reject(OpSwap, fmt.Errorf("%w: payout: %v", domain.ErrTransferFailed, err), attrs...)
	}

	l.logger.Info("swap settled",
		slog.String("caller", string(caller)),
		slog.String("from", string(fromAsset)),
		slog.String("from_amount", fromAmount.String()),
		slog.String("to", string(toAsset)),
		slog.String("to_amount", toAmount.String()),
	)
	l.emit(domain.SwapNotification{
		NotificationHeader: domain.NewHeader(l.now()),
		Caller:             caller,
		FromAsset:          fromAsset,
		FromAmount:         fromAmount,
		ToAsset:            toAsset,
		ToAmount:           toAmount,
	})
	return toAmount, nil
}

// Quote previews a swap: it runs the same validation, rate lookup, arithmetic
// and liquidity check as Swap without consulting the state gate or moving funds.
func (l *Ledger) Quote(fromAsset domain.AssetID, fromAmount decimal.Decimal, toAsset domain.AssetID) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	toAmount, err := l.price(fromAsset, fromAmount, toAsset)
	if err != nil {
		return decimal.Zero, domain.NewOpError(OpQuote, err)
	}
	return toAmount, nil
}

// price must be called with l.mu held.
func (l *Ledger) price(fromAsset domain.AssetID, fromAmount decimal.Decimal, toAsset domain.AssetID) (decimal.Decimal, error) {
	if err := l.validatePair(fromAsset, toAsset); err != nil {
		return decimal.Zero, err
	}
	if !domain.IsPositiveInteger(fromAmount) {
		return decimal.Zero, fmt.Errorf("%w: %s", domain.ErrInvalidAmount, fromAmount)
	}
	rate, err := l.exchangeRate(fromAsset, toAsset)
	if err != nil {
		return decimal.Zero, err
	}
	toAmount := domain.ConvertAmount(fromAmount, rate)

	held, err := l.bank.Balance(l.contract, toAsset)
	if err != nil {
		return decimal.Zero, err
	}
	if held.LessThan(toAmount) {
		return decimal.Zero, fmt.Errorf("%w: %s holds %s, payout %s",
			domain.ErrInsufficientLiquidity, toAsset, held, toAmount)
	}
	return toAmount, nil
}

// refund returns funds the contract already received when a later step of the
// same operation fails.
func (l *Ledger) refund(op string, caller domain.Address, asset domain.AssetID, amount decimal.Decimal) {
	if err := l.bank.Transfer(l.contract, caller, asset, amount); err != nil {
		l.logger.Error("COMPENSATION_FAILED",
			slog.String("op", op),
			slog.String("caller", string(caller)),
			slog.String("asset", string(asset)),
			slog.String("amount", amount.String()),
			slog.Any("error", err),
		)
		return
	}
	l.logger.Warn("pay-in refunded",
		slog.String("op", op),
		slog.String("caller", string(caller)),
		slog.String("asset", string(asset)),
		slog.String("amount", amount.String()),
	)
}

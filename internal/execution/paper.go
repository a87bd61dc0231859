package execution

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"token_swap/internal/domain"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Fill records one completed transfer.
type Fill struct {
	Seq    uint64          `json:"seq"`
	From   domain.Address  `json:"from"`
	To     domain.Address  `json:"to"`
	Asset  domain.AssetID  `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
	At     time.Time       `json:"at"`
}

// PaperBank is an in-process token bank. It implements domain.Bank with
// 256-bit balances per (holder, asset); every transfer is all-or-nothing.
type PaperBank struct {
	mu       sync.RWMutex
	accounts map[domain.Address]map[domain.AssetID]*uint256.Int
	fills    []Fill
	maxFills int
	nextSeq  uint64
	now      func() time.Time
}

// NewPaperBank creates an empty bank keeping at most maxFills fills in
// history (0 keeps all of them).
func NewPaperBank(maxFills int) *PaperBank {
	return &PaperBank{
		accounts: make(map[domain.Address]map[domain.AssetID]*uint256.Int),
		maxFills: maxFills,
		nextSeq:  1,
		now:      time.Now,
	}
}

// Mint credits amount of asset to holder out of thin air.
func (b *PaperBank) Mint(holder domain.Address, asset domain.AssetID, amount decimal.Decimal) error {
	v, err := toUint256(amount)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	bal := b.balance(holder, asset)
	sum, overflow := new(uint256.Int).AddOverflow(bal, v)
	if overflow {
		return fmt.Errorf("%w: mint %s %s to %s", domain.ErrAmountOverflow, amount, asset, holder)
	}
	b.set(holder, asset, sum)
	slog.Debug("paper bank mint",
		slog.String("holder", string(holder)),
		slog.String("asset", string(asset)),
		slog.String("amount", amount.String()),
	)
	return nil
}

// Balance implements domain.BalanceOracle.
func (b *PaperBank) Balance(holder domain.Address, asset domain.AssetID) (decimal.Decimal, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return fromUint256(b.balance(holder, asset)), nil
}

// Transfer implements domain.TransferExecutor. Zero transfers succeed without
// touching balances.
func (b *PaperBank) Transfer(from, to domain.Address, asset domain.AssetID, amount decimal.Decimal) error {
	v, err := toUint256(amount)
	if err != nil {
		return err
	}
	if v.IsZero() {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	src := b.balance(from, asset)
	if src.Lt(v) {
		return fmt.Errorf("%w: %s holds %s %s, need %s",
			domain.ErrInsufficientFunds, from, fromUint256(src), asset, amount)
	}
	if from != to {
		dst, overflow := new(uint256.Int).AddOverflow(b.balance(to, asset), v)
		if overflow {
			return fmt.Errorf("%w: credit %s %s to %s", domain.ErrAmountOverflow, amount, asset, to)
		}
		b.set(from, asset, new(uint256.Int).Sub(src, v))
		b.set(to, asset, dst)
	}

	b.fills = append(b.fills, Fill{
		Seq:    b.nextSeq,
		From:   from,
		To:     to,
		Asset:  asset,
		Amount: amount,
		At:     b.now(),
	})
	b.nextSeq++
	if b.maxFills > 0 && len(b.fills) > b.maxFills {
		b.fills = append([]Fill(nil), b.fills[len(b.fills)-b.maxFills:]...)
	}
	return nil
}

// GetFills returns a copy of the transfer history, oldest first.
func (b *PaperBank) GetFills() []Fill {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Fill(nil), b.fills...)
}

// Snapshot returns every non-zero balance of holder.
func (b *PaperBank) Snapshot(holder domain.Address) map[domain.AssetID]decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	result := make(map[domain.AssetID]decimal.Decimal)
	for asset, bal := range b.accounts[holder] {
		if !bal.IsZero() {
			result[asset] = fromUint256(bal)
		}
	}
	return result
}

func (b *PaperBank) balance(holder domain.Address, asset domain.AssetID) *uint256.Int {
	if bal, ok := b.accounts[holder][asset]; ok {
		return bal
	}
	return new(uint256.Int)
}

func (b *PaperBank) set(holder domain.Address, asset domain.AssetID, v *uint256.Int) {
	acct, ok := b.accounts[holder]
	if !ok {
		acct = make(map[domain.AssetID]*uint256.Int)
		b.accounts[holder] = acct
	}
	acct[asset] = v
}

func toUint256(amount decimal.Decimal) (*uint256.Int, error) {
	if amount.IsNegative() || !amount.IsInteger() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidAmount, amount)
	}
	v, overflow := uint256.FromBig(amount.BigInt())
	if overflow {
		return nil, fmt.Errorf("%w: %s", domain.ErrAmountOverflow, amount)
	}
	return v, nil
}

func fromUint256(v *uint256.Int) decimal.Decimal {
	return decimal.NewFromBigInt(v.ToBig(), 0)
}

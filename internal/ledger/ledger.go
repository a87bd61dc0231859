// Package ledger is the accounting core of the swap exchange: the state gate,
// the rate table and the liquidity share table, plus swap settlement.
//
// All mutations hold the ledger's write lock for their full duration, so no
// reader ever observes a half-applied operation.
package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"token_swap/internal/domain"
)

// Operation names used in errors, logs and metrics.
const (
	OpSwap            = "swap"
	OpQuote           = "quote"
	OpAddLiquidity    = "addLiquidity"
	OpRemoveLiquidity = "removeLiquidity"
	OpSetExchangeRate = "setExchangeRate"
	OpGetExchangeRate = "getExchangeRate"
	OpSetState        = "setState"
)

// Config wires the ledger to its store and collaborators.
type Config struct {
	Store    Store
	Contract domain.Address // principal that holds pooled funds
	Assets   domain.AssetValidator
	Bank     domain.Bank
	Identity domain.IdentityOracle
	Sink     domain.NotificationSink
	Logger   *slog.Logger
	Now      func() time.Time
}

// Ledger is safe for concurrent use.
type Ledger struct {
	mu sync.RWMutex

	store    Store
	contract domain.Address
	assets   domain.AssetValidator
	bank     domain.Bank
	identity domain.IdentityOracle
	sink     domain.NotificationSink
	logger   *slog.Logger
	now      func() time.Time

	state domain.OperationalState
}

// New constructs a ledger. An empty store is initialized to StateInactive.
func New(cfg Config) (*Ledger, error) {
	if cfg.Store == nil {
		return nil, errors.New("ledger: store not configured")
	}
	if cfg.Bank == nil {
		return nil, errors.New("ledger: bank not configured")
	}
	if cfg.Identity == nil {
		return nil, errors.New("ledger: identity oracle not configured")
	}
	if cfg.Contract == "" {
		return nil, errors.New("ledger: contract address not configured")
	}
	l := &Ledger{
		store:    cfg.Store,
		contract: cfg.Contract,
		assets:   cfg.Assets,
		bank:     cfg.Bank,
		identity: cfg.Identity,
		sink:     cfg.Sink,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
	if l.assets == nil {
		l.assets = domain.ESDTValidator{}
	}
	if l.sink == nil {
		l.sink = domain.NoopSink{}
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	l.logger = l.logger.With("module", "ledger")
	if l.now == nil {
		l.now = time.Now
	}

	state, ok, err := l.store.LoadState()
	if err != nil {
		return nil, fmt.Errorf("ledger: load state: %w", err)
	}
	if !ok {
		state = domain.StateInactive
		if err := l.store.SaveState(state); err != nil {
			return nil, fmt.Errorf("ledger: init state: %w", err)
		}
	}
	l.state = state
	return l, nil
}

// Contract returns the address holding pooled funds.
func (l *Ledger) Contract() domain.Address {
	return l.contract
}

// Owner returns the privileged principal.
func (l *Ledger) Owner() domain.Address {
	return l.identity.Owner()
}

func (l *Ledger) validAsset(id domain.AssetID) bool {
	return l.assets.IsValidAsset(id)
}

func (l *Ledger) emit(n domain.Notification) {
	l.sink.Notify(n)
}

// reject logs a failed operation and wraps err with the operation name.
func (l *Ledger) reject(op string, err error, attrs ...any) error {
	l.logger.Debug("operation rejected",
		append([]any{slog.String("op", op), slog.Any("error", err)}, attrs...)...)
	return domain.NewOpError(op, err)
}

package service

import (
	"context"
	"errors"
	"log/slog"

	"token_swap/internal/domain"
	"token_swap/internal/engine"
	"token_swap/internal/event"
	"token_swap/internal/ledger"

	"github.com/shopspring/decimal"
)

// AssetCatalog lists the known assets.
type AssetCatalog interface {
	ListAssets(activeOnly bool) ([]domain.AssetInfo, error)
}

// Holdings lists every non-zero balance of a holder.
type Holdings interface {
	Snapshot(holder domain.Address) map[domain.AssetID]decimal.Decimal
}

// Config wires a LedgerService.
type Config struct {
	Ledger    *ledger.Ledger
	Sequencer *engine.Sequencer
	Bank      domain.BalanceOracle
	History   *History
	Catalog   AssetCatalog // optional
	Logger    *slog.Logger
}

// LedgerService is the application façade over the ledger. Mutations are
// submitted to the sequencer; reads go to the ledger directly.
type LedgerService struct {
	ledger  *ledger.Ledger
	seq     *engine.Sequencer
	bank    domain.BalanceOracle
	history *History
	catalog AssetCatalog
	logger  *slog.Logger
}

// NewLedgerService creates a new LedgerService instance
func NewLedgerService(cfg Config) (*LedgerService, error) {
	if cfg.Ledger == nil || cfg.Sequencer == nil {
		return nil, errors.New("service: ledger and sequencer are required")
	}
	if cfg.Bank == nil {
		return nil, errors.New("service: bank is required")
	}
	if cfg.History == nil {
		cfg.History = NewHistory(DefaultHistorySize)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &LedgerService{
		ledger:  cfg.Ledger,
		seq:     cfg.Sequencer,
		bank:    cfg.Bank,
		history: cfg.History,
		catalog: cfg.Catalog,
		logger:  cfg.Logger.With("module", "ledger_service"),
	}, nil
}

// Owner returns the privileged principal.
func (s *LedgerService) Owner() domain.Address {
	return s.ledger.Owner()
}

// submit runs ev through the sequencer and folds the command error into the
// returned error.
func (s *LedgerService) submit(ctx context.Context, ev event.Event) (engine.Result, error) {
	res, err := s.seq.Submit(ctx, ev)
	if err != nil {
		return res, err
	}
	return res, res.Err
}

// ======================================================================================
// Mutations
// ======================================================================================

// SetState changes the operational state on behalf of caller.
func (s *LedgerService) SetState(ctx context.Context, caller domain.Address, state domain.OperationalState) (uint64, error) {
	res, err := s.submit(ctx, &event.SetStateCommand{
		BaseEvent: event.BaseEvent{Caller: caller},
		State:     state,
	})
	return res.Seq, err
}

// SetExchangeRate sets a directional rate on behalf of caller.
func (s *LedgerService) SetExchangeRate(ctx context.Context, caller domain.Address, from, to domain.AssetID, rate decimal.Decimal) (uint64, error) {
	res, err := s.submit(ctx, &event.SetExchangeRateCommand{
		BaseEvent: event.BaseEvent{Caller: caller},
		From:      from,
		To:        to,
		Rate:      rate,
	})
	return res.Seq, err
}

// ApplyFeedRate is the rate feed's update hook. It submits the rate as the owner.
func (s *LedgerService) ApplyFeedRate(ctx context.Context, rate domain.ExchangeRate) error {
	_, err := s.SetExchangeRate(ctx, s.ledger.Owner(), rate.From, rate.To, rate.Rate)
	return err
}

// Swap exchanges fromAmount of fromAsset for toAsset and returns the payout.
func (s *LedgerService) Swap(ctx context.Context, caller domain.Address, fromAsset domain.AssetID, fromAmount decimal.Decimal, toAsset domain.AssetID) (engine.Result, error) {
	return s.submit(ctx, &event.SwapCommand{
		BaseEvent:  event.BaseEvent{Caller: caller},
		FromAsset:  fromAsset,
		FromAmount: fromAmount,
		ToAsset:    toAsset,
	})
}

// AddLiquidity deposits amount and returns the new share.
func (s *LedgerService) AddLiquidity(ctx context.Context, caller domain.Address, asset domain.AssetID, amount decimal.Decimal) (engine.Result, error) {
	return s.submit(ctx, &event.AddLiquidityCommand{
		BaseEvent: event.BaseEvent{Caller: caller},
		Asset:     asset,
		Amount:    amount,
	})
}

// RemoveLiquidity withdraws amount and returns the remaining share.
func (s *LedgerService) RemoveLiquidity(ctx context.Context, caller domain.Address, asset domain.AssetID, amount decimal.Decimal) (engine.Result, error) {
	return s.submit(ctx, &event.RemoveLiquidityCommand{
		BaseEvent: event.BaseEvent{Caller: caller},
		Asset:     asset,
		Amount:    amount,
	})
}

// ======================================================================================
// Reads
// ======================================================================================

// State returns the current operational state
func (s *LedgerService) State() domain.OperationalState {
	return s.ledger.State()
}

// ExchangeRate returns the directional rate, or RateNotSet.
func (s *LedgerService) ExchangeRate(from, to domain.AssetID) (decimal.Decimal, error) {
	return s.ledger.ExchangeRate(from, to)
}

// Rates returns every configured rate sorted by (from, to)
func (s *LedgerService) Rates() ([]domain.ExchangeRate, error) {
	return s.ledger.Rates()
}

// Quote prices a swap without executing it.
func (s *LedgerService) Quote(fromAsset domain.AssetID, fromAmount decimal.Decimal, toAsset domain.AssetID) (decimal.Decimal, error) {
	return s.ledger.Quote(fromAsset, fromAmount, toAsset)
}

// LiquidityShare returns the share of one provider in one asset
func (s *LedgerService) LiquidityShare(provider domain.Address, asset domain.AssetID) (decimal.Decimal, error) {
	return s.ledger.LiquidityShare(provider, asset)
}

// Shares returns every share entry of provider
func (s *LedgerService) Shares(provider domain.Address) ([]domain.LiquidityShare, error) {
	return s.ledger.Shares(provider)
}

// Balance reads a holder's token balance through the balance oracle.
func (s *LedgerService) Balance(holder domain.Address, asset domain.AssetID) (decimal.Decimal, error) {
	if !domain.IsValidAssetID(asset) {
		return decimal.Zero, domain.ErrInvalidAsset
	}
	return s.bank.Balance(holder, asset)
}

// Holdings returns every non-zero balance of holder when the bank can list
// them.
func (s *LedgerService) Holdings(holder domain.Address) (map[domain.AssetID]decimal.Decimal, bool) {
	h, ok := s.bank.(Holdings)
	if !ok {
		return nil, false
	}
	return h.Snapshot(holder), true
}

// Notifications returns up to limit recent notifications, newest first.
func (s *LedgerService) Notifications(limit int) []Record {
	return s.history.Recent(limit)
}

// Assets lists the asset catalog, optionally only the active entries.
func (s *LedgerService) Assets(activeOnly bool) ([]domain.AssetInfo, error) {
	if s.catalog == nil {
		return []domain.AssetInfo{}, nil
	}
	return s.catalog.ListAssets(activeOnly)
}

// NextSeq reports the sequence number the next command will receive.
func (s *LedgerService) NextSeq() uint64 {
	return s.seq.NextSeq()
}

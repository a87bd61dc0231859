package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"token_swap/internal/domain"
	"token_swap/internal/engine"
	"token_swap/internal/execution"
	"token_swap/internal/ledger"

	"github.com/shopspring/decimal"
)

const (
	owner    = domain.Address("erd1owner")
	contract = domain.Address("erd1contract")
	alice    = domain.Address("erd1alice")
	tokenA   = domain.AssetID("TOKENA-a1b2c3")
	tokenB   = domain.AssetID("TOKENB-d4e5f6")
)

type staticCatalog []domain.AssetInfo

func (c staticCatalog) ListAssets(activeOnly bool) ([]domain.AssetInfo, error) {
	var out []domain.AssetInfo
	for _, a := range c {
		if !activeOnly || a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func setupService(t *testing.T) (*LedgerService, *execution.PaperBank) {
	t.Helper()

	bank := execution.NewPaperBank(0)
	history := NewHistory(4)
	l, err := ledger.New(ledger.Config{
		Store:    ledger.NewMemoryStore(),
		Contract: contract,
		Bank:     bank,
		Identity: domain.ContextIdentity{OwnerAddress: owner},
		Sink:     history,
	})
	if err != nil {
		t.Fatalf("ledger.New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	seq, err := engine.NewSequencer(ctx, engine.Config{Ledger: l, DumpPath: t.TempDir() + "/dump.json"})
	if err != nil {
		t.Fatalf("NewSequencer failed: %v", err)
	}
	go seq.Run(ctx)
	t.Cleanup(func() {
		cancel()
		select {
		case <-seq.Done():
		case <-time.After(time.Second):
			t.Error("sequencer did not stop")
		}
	})

	svc, err := NewLedgerService(Config{
		Ledger:    l,
		Sequencer: seq,
		Bank:      bank,
		History:   history,
		Catalog: staticCatalog{
			{Asset: tokenA, Ticker: "TOKENA", IsActive: true},
			{Asset: tokenB, Ticker: "TOKENB"},
		},
	})
	if err != nil {
		t.Fatalf("NewLedgerService failed: %v", err)
	}
	return svc, bank
}

func TestLedgerService_SwapThroughSequencer(t *testing.T) {
	svc, bank := setupService(t)
	ctx := context.Background()

	bank.Mint(alice, tokenA, decimal.NewFromInt(1000))
	bank.Mint(contract, tokenB, decimal.NewFromInt(500))

	if _, err := svc.SetState(ctx, owner, domain.StateActive); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}
	if _, err := svc.SetExchangeRate(ctx, owner, tokenA, tokenB, decimal.NewFromInt(2000)); err != nil {
		t.Fatalf("SetExchangeRate failed: %v", err)
	}

	quote, err := svc.Quote(tokenA, decimal.NewFromInt(100), tokenB)
	if err != nil || !quote.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("Expected quote 200, got %s (%v)", quote, err)
	}

	res, err := svc.Swap(ctx, alice, tokenA, decimal.NewFromInt(100), tokenB)
	if err != nil {
		t.Fatalf("Swap failed: %v", err)
	}
	if !res.Amount.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected payout 200, got %s", res.Amount)
	}
	if res.Seq != 3 {
		t.Errorf("Expected seq 3, got %d", res.Seq)
	}

	bal, _ := svc.Balance(alice, tokenB)
	if !bal.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected alice TOKENB 200, got %s", bal)
	}
	holdings, ok := svc.Holdings(alice)
	if !ok || len(holdings) != 2 {
		t.Errorf("Expected 2 holdings, got %v", holdings)
	}

	recent := svc.Notifications(0)
	if len(recent) != 1 || recent[0].Topic != domain.TopicSwap {
		t.Fatalf("Expected one swap notification, got %+v", recent)
	}
}

func TestLedgerService_RejectionsSurface(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.SetState(ctx, alice, domain.StateActive); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}
	if _, err := svc.AddLiquidity(ctx, alice, tokenA, decimal.NewFromInt(1)); !errors.Is(err, domain.ErrNotActive) {
		t.Errorf("Expected ErrNotActive, got %v", err)
	}
	if _, err := svc.ExchangeRate(tokenA, tokenB); !errors.Is(err, domain.ErrRateNotSet) {
		t.Errorf("Expected ErrRateNotSet, got %v", err)
	}
	if _, err := svc.Balance(alice, "bogus"); !errors.Is(err, domain.ErrInvalidAsset) {
		t.Errorf("Expected ErrInvalidAsset, got %v", err)
	}
}

func TestLedgerService_LiquidityAndFeed(t *testing.T) {
	svc, bank := setupService(t)
	ctx := context.Background()
	bank.Mint(alice, tokenA, decimal.NewFromInt(1000))
	svc.SetState(ctx, owner, domain.StateActive)

	res, err := svc.AddLiquidity(ctx, alice, tokenA, decimal.NewFromInt(500))
	if err != nil || !res.Amount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("AddLiquidity: share %s (%v)", res.Amount, err)
	}
	res, err = svc.RemoveLiquidity(ctx, alice, tokenA, decimal.NewFromInt(200))
	if err != nil || !res.Amount.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("RemoveLiquidity: share %s (%v)", res.Amount, err)
	}
	share, _ := svc.LiquidityShare(alice, tokenA)
	if !share.Equal(decimal.NewFromInt(300)) {
		t.Errorf("Expected share 300, got %s", share)
	}
	shares, _ := svc.Shares(alice)
	if len(shares) != 1 {
		t.Errorf("Expected 1 share entry, got %d", len(shares))
	}

	err = svc.ApplyFeedRate(ctx, domain.ExchangeRate{From: tokenB, To: tokenA, Rate: decimal.NewFromInt(750)})
	if err != nil {
		t.Fatalf("ApplyFeedRate failed: %v", err)
	}
	rates, _ := svc.Rates()
	if len(rates) != 1 || !rates[0].Rate.Equal(decimal.NewFromInt(750)) {
		t.Errorf("Expected feed rate applied, got %+v", rates)
	}

	recent := svc.Notifications(1)
	if len(recent) != 1 || recent[0].Topic != domain.TopicLiquidityRemoved {
		t.Errorf("Expected newest to be liquidityRemoved, got %+v", recent)
	}
}

func TestLedgerService_Assets(t *testing.T) {
	svc, _ := setupService(t)

	active, _ := svc.Assets(true)
	if len(active) != 1 || active[0].Asset != tokenA {
		t.Errorf("Expected only TOKENA active, got %+v", active)
	}
	all, _ := svc.Assets(false)
	if len(all) != 2 {
		t.Errorf("Expected 2 assets, got %d", len(all))
	}
}

func TestNewLedgerService_RequiresDependencies(t *testing.T) {
	if _, err := NewLedgerService(Config{}); err == nil {
		t.Error("Expected error for empty config")
	}
}

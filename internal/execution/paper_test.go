package execution

import (
	"errors"
	"testing"

	"token_swap/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	tokenA = domain.AssetID("TOKENA-a1b2c3")
	tokenB = domain.AssetID("TOKENB-d4e5f6")
)

func TestPaperBank_Transfer(t *testing.T) {
	bank := NewPaperBank(0)

	// Setup: mint 10000 TokenA to alice
	if err := bank.Mint("alice", tokenA, decimal.NewFromInt(10000)); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	if err := bank.Transfer("alice", "pool", tokenA, decimal.NewFromInt(2500)); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	alice, _ := bank.Balance("alice", tokenA)
	if !alice.Equal(decimal.NewFromInt(7500)) {
		t.Errorf("Expected 7500 TokenA for alice, got %s", alice)
	}
	pool, _ := bank.Balance("pool", tokenA)
	if !pool.Equal(decimal.NewFromInt(2500)) {
		t.Errorf("Expected 2500 TokenA for pool, got %s", pool)
	}

	// Verify fills
	fills := bank.GetFills()
	if len(fills) != 1 {
		t.Fatalf("Expected 1 fill, got %d", len(fills))
	}
	if fills[0].From != "alice" || fills[0].To != "pool" || fills[0].Seq != 1 {
		t.Errorf("Unexpected fill %+v", fills[0])
	}
}

func TestPaperBank_InsufficientFunds(t *testing.T) {
	bank := NewPaperBank(0)
	bank.Mint("alice", tokenA, decimal.NewFromInt(100))

	err := bank.Transfer("alice", "pool", tokenA, decimal.NewFromInt(101))
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("Expected ErrInsufficientFunds, got %v", err)
	}

	// No partial mutation
	alice, _ := bank.Balance("alice", tokenA)
	if !alice.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected 100 TokenA after failed transfer, got %s", alice)
	}
	if len(bank.GetFills()) != 0 {
		t.Error("Failed transfer must not record a fill")
	}
}

func TestPaperBank_Overflow(t *testing.T) {
	bank := NewPaperBank(0)
	maxSupply, _ := decimal.NewFromString("115792089237316195423570985008687907853269984665640564039457584007913129639935")

	if err := bank.Mint("alice", tokenA, maxSupply); err != nil {
		t.Fatalf("Mint of 2^256-1 should succeed: %v", err)
	}
	if err := bank.Mint("alice", tokenA, decimal.NewFromInt(1)); !errors.Is(err, domain.ErrAmountOverflow) {
		t.Errorf("Expected ErrAmountOverflow, got %v", err)
	}
	if err := bank.Mint("bob", tokenA, maxSupply.Add(decimal.NewFromInt(1))); !errors.Is(err, domain.ErrAmountOverflow) {
		t.Errorf("Expected ErrAmountOverflow for 2^256, got %v", err)
	}
}

func TestPaperBank_ZeroAndInvalidAmounts(t *testing.T) {
	bank := NewPaperBank(0)

	if err := bank.Transfer("pool", "alice", tokenB, decimal.Zero); err != nil {
		t.Errorf("Zero transfer should succeed even from an empty account: %v", err)
	}
	if err := bank.Transfer("pool", "alice", tokenB, decimal.NewFromInt(-1)); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount for negative transfer, got %v", err)
	}
	if err := bank.Mint("alice", tokenB, decimal.NewFromFloat(0.5)); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount for fractional mint, got %v", err)
	}
}

func TestPaperBank_FillHistoryBounded(t *testing.T) {
	bank := NewPaperBank(2)
	bank.Mint("alice", tokenA, decimal.NewFromInt(10))
	for i := 0; i < 5; i++ {
		if err := bank.Transfer("alice", "bob", tokenA, decimal.NewFromInt(1)); err != nil {
			t.Fatalf("Transfer %d failed: %v", i, err)
		}
	}
	fills := bank.GetFills()
	if len(fills) != 2 {
		t.Fatalf("Expected 2 fills, got %d", len(fills))
	}
	if fills[1].Seq != 5 {
		t.Errorf("Expected newest fill seq 5, got %d", fills[1].Seq)
	}
	snap := bank.Snapshot("bob")
	if !snap[tokenA].Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected bob to hold 5, got %s", snap[tokenA])
	}
}

func TestPaperBank_ImplementsInterface(t *testing.T) {
	var _ domain.Bank = (*PaperBank)(nil)
}

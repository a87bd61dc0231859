package storage

import (
	"context"
	"testing"

	"token_swap/internal/domain"
	"token_swap/internal/engine"
	"token_swap/internal/event"
	"token_swap/internal/ledger"

	"github.com/shopspring/decimal"
)

var (
	_ engine.Journal = (*SQLite)(nil)
	_ engine.Journal = (*LevelDB)(nil)
)

type settingsStore interface {
	SaveSetting(key, value string) error
	LoadSettings() (map[string]string, error)
}

// runStoreContract exercises the ledger.Store behaviour every backend shares.
func runStoreContract(t *testing.T, s ledger.Store) {
	t.Helper()

	// State
	if _, ok, err := s.LoadState(); err != nil || ok {
		t.Fatalf("fresh store should have no state, got ok=%v err=%v", ok, err)
	}
	for _, want := range []domain.OperationalState{domain.StateActive, domain.StatePaused, domain.StateInactive} {
		if err := s.SaveState(want); err != nil {
			t.Fatalf("SaveState(%s) failed: %v", want, err)
		}
		got, ok, err := s.LoadState()
		if err != nil || !ok || got != want {
			t.Errorf("LoadState: expected %s, got %s (ok=%v err=%v)", want, got, ok, err)
		}
	}

	// Rates
	a, b := domain.AssetID("TOKENA-a1b2c3"), domain.AssetID("TOKENB-d4e5f6")
	if _, ok, err := s.LoadRate(a, b); err != nil || ok {
		t.Fatalf("unset rate should be absent, got ok=%v err=%v", ok, err)
	}
	s.SaveRate(b, a, decimal.NewFromInt(500))
	s.SaveRate(a, b, decimal.NewFromInt(1999))
	s.SaveRate(a, b, decimal.NewFromInt(2000))
	rate, ok, err := s.LoadRate(a, b)
	if err != nil || !ok || !rate.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("expected rate 2000, got %s (ok=%v err=%v)", rate, ok, err)
	}
	rates, err := s.ListRates()
	if err != nil {
		t.Fatalf("ListRates failed: %v", err)
	}
	if len(rates) != 2 || rates[0].From != a || rates[1].From != b {
		t.Errorf("unexpected rate listing %+v", rates)
	}

	// Shares
	huge := decimal.RequireFromString("340282366920938463463374607431768211456")
	zero, err := s.LoadShare("erd1alice", a)
	if err != nil || !zero.IsZero() {
		t.Errorf("unseen share should be zero, got %s (%v)", zero, err)
	}
	s.SaveShare("erd1alice", b, huge)
	s.SaveShare("erd1alice", a, decimal.NewFromInt(7))
	s.SaveShare("erd1alicex", a, decimal.NewFromInt(99))
	got, _ := s.LoadShare("erd1alice", b)
	if !got.Equal(huge) {
		t.Errorf("expected %s, got %s", huge, got)
	}
	shares, err := s.ListShares("erd1alice")
	if err != nil {
		t.Fatalf("ListShares failed: %v", err)
	}
	if len(shares) != 2 || shares[0].Asset != a || shares[1].Asset != b {
		t.Errorf("unexpected share listing %+v", shares)
	}

	// Settings
	if ss, ok := s.(settingsStore); ok {
		ss.SaveSetting("bootstrap.seeded", "1")
		settings, err := ss.LoadSettings()
		if err != nil || settings["bootstrap.seeded"] != "1" {
			t.Errorf("expected seeded setting, got %v (%v)", settings, err)
		}
	}
}

// runJournalContract exercises the engine.Journal behaviour every backend shares.
func runJournalContract(t *testing.T, j engine.Journal) {
	t.Helper()
	ctx := context.Background()

	last, err := j.LastSeq(ctx)
	if err != nil || last != 0 {
		t.Fatalf("empty journal: expected 0, got %d (%v)", last, err)
	}

	for seq := uint64(1); seq <= 300; seq++ {
		entry, err := event.NewJournalEntry(&event.SwapCommand{
			BaseEvent:  event.BaseEvent{Seq: seq, Ts: int64(seq), Caller: "erd1alice"},
			FromAsset:  "TOKENA-a1b2c3",
			FromAmount: decimal.NewFromInt(int64(seq)),
			ToAsset:    "TOKENB-d4e5f6",
		})
		if err != nil {
			t.Fatalf("NewJournalEntry failed: %v", err)
		}
		if err := j.Append(ctx, entry); err != nil {
			t.Fatalf("Append(%d) failed: %v", seq, err)
		}
	}
	if err := j.Complete(ctx, 256, event.OutcomeRejected, "InsufficientLiquidity"); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if err := j.Complete(ctx, 9999, event.OutcomeOK, ""); err == nil {
		t.Error("Complete of an unknown seq should fail")
	}

	last, _ = j.LastSeq(ctx)
	if last != 300 {
		t.Errorf("expected last seq 300, got %d", last)
	}

	entries, err := j.Entries(ctx, 255, 2)
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Seq != 256 || entries[1].Seq != 257 {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if entries[0].Outcome != event.OutcomeRejected || entries[0].ErrorCode != "InsufficientLiquidity" {
		t.Errorf("completion not persisted: %+v", entries[0])
	}
	if entries[1].Outcome != event.OutcomePending {
		t.Errorf("expected pending, got %s", entries[1].Outcome)
	}

	ev, err := event.Decode(entries[0])
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if swap := ev.(*event.SwapCommand); !swap.FromAmount.Equal(decimal.NewFromInt(256)) {
		t.Errorf("payload mismatch: %+v", swap)
	}
}

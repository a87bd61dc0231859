package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"token_swap/internal/domain"
	"token_swap/internal/event"

	"github.com/shopspring/decimal"
)

// BenchmarkSequencer_Process measures single command processing without the
// inbox hop.
func BenchmarkSequencer_Process(b *testing.B) {
	l, bank := newTestLedger(b)
	seq, err := NewSequencer(context.Background(), Config{Ledger: l, Journal: &memJournal{}})
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	seq.process(ctx, &event.SetStateCommand{BaseEvent: event.BaseEvent{Caller: owner}, State: domain.StateActive})
	seq.process(ctx, &event.SetExchangeRateCommand{BaseEvent: event.BaseEvent{Caller: owner}, From: tokenA, To: tokenB, Rate: decimal.NewFromInt(1000)})
	bank.Mint(contract, tokenB, decimal.NewFromInt(int64(b.N)+1))
	bank.Mint(alice, tokenA, decimal.NewFromInt(int64(b.N)+1))

	one := decimal.NewFromInt(1)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		res := seq.process(ctx, &event.SwapCommand{
			BaseEvent:  event.BaseEvent{Caller: alice},
			FromAsset:  tokenA,
			FromAmount: one,
			ToAsset:    tokenB,
		})
		if res.Err != nil {
			b.Fatal(res.Err)
		}
	}
}

// BenchmarkSequencer_FullPipeline measures end-to-end command processing.
// Note: This benchmark includes channel overhead.
func BenchmarkSequencer_FullPipeline(b *testing.B) {
	l, bank := newTestLedger(b)
	seq, err := NewSequencer(context.Background(), Config{Ledger: l, InboxSize: 1024})
	if err != nil {
		b.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start sequencer in background
	go seq.Run(ctx)

	owned := event.BaseEvent{Caller: owner}
	seq.Submit(ctx, &event.SetStateCommand{BaseEvent: owned, State: domain.StateActive})
	seq.Submit(ctx, &event.SetExchangeRateCommand{BaseEvent: owned, From: tokenA, To: tokenB, Rate: decimal.NewFromInt(1000)})

	callers := make([]domain.Address, 64)
	for i := range callers {
		callers[i] = domain.Address(fmt.Sprintf("erd1bench%02d", i))
		bank.Mint(callers[i], tokenA, decimal.NewFromInt(int64(b.N)+1))
	}
	bank.Mint(contract, tokenB, decimal.NewFromInt(int64(b.N)+1))

	b.ResetTimer()
	b.ReportAllocs()

	var n atomic.Uint64
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := int(n.Add(1) % uint64(len(callers)))
			seq.Submit(ctx, &event.SwapCommand{
				BaseEvent:  event.BaseEvent{Caller: callers[i]},
				FromAsset:  tokenA,
				FromAmount: decimal.NewFromInt(1),
				ToAsset:    tokenB,
			})
		}
	})
}

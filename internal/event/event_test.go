package event

import (
	"errors"
	"testing"

	"token_swap/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestJournalEntry_DecodeRestoresCommand(t *testing.T) {
	cmd := &SwapCommand{
		BaseEvent:  BaseEvent{Seq: 7, Ts: 1700000000000000, Caller: "erd1alice"},
		FromAsset:  "TOKENA-a1b2c3",
		FromAmount: decimal.RequireFromString("123456789012345678901234567890"),
		ToAsset:    "TOKENB-d4e5f6",
	}

	entry, err := NewJournalEntry(cmd)
	require.NoError(t, err)
	require.Equal(t, uint64(7), entry.Seq)
	require.Equal(t, TypeSwap, entry.Type)
	require.Equal(t, domain.Address("erd1alice"), entry.Caller)
	require.Equal(t, OutcomePending, entry.Outcome)
	require.NotContains(t, string(entry.Payload), "\n")

	decoded, err := Decode(entry)
	require.NoError(t, err)
	swap, ok := decoded.(*SwapCommand)
	require.True(t, ok)
	require.Equal(t, cmd.FromAsset, swap.FromAsset)
	require.True(t, cmd.FromAmount.Equal(swap.FromAmount))
	require.Equal(t, cmd.Caller, swap.Caller)
}

func TestJournalEntry_StateIsText(t *testing.T) {
	entry, err := NewJournalEntry(&SetStateCommand{State: domain.StatePaused})
	require.NoError(t, err)
	require.Contains(t, string(entry.Payload), `"Paused"`)

	decoded, err := Decode(entry)
	require.NoError(t, err)
	require.Equal(t, domain.StatePaused, decoded.(*SetStateCommand).State)
}

func TestDecode_UnknownType(t *testing.T) {
	_, err := Decode(JournalEntry{Type: "mint", Payload: []byte(`{}`)})
	require.True(t, errors.Is(err, domain.ErrUnknownCommand))
}

func TestEncodePayload_DoesNotAliasPool(t *testing.T) {
	Warmup()
	first, err := EncodePayload(&AddLiquidityCommand{Asset: "TOKENA-a1b2c3", Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	snapshot := string(first)

	_, err = EncodePayload(&RemoveLiquidityCommand{Asset: "TOKENB-d4e5f6", Amount: decimal.NewFromInt(99)})
	require.NoError(t, err)
	require.Equal(t, snapshot, string(first))
}

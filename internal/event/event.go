package event

import (
	"encoding/json"
	"fmt"

	"token_swap/internal/domain"

	"github.com/shopspring/decimal"
)

// Type names a command. The values double as operation names in logs and
// metrics.
type Type string

const (
	TypeSwap            Type = "swap"
	TypeAddLiquidity    Type = "addLiquidity"
	TypeRemoveLiquidity Type = "removeLiquidity"
	TypeSetExchangeRate Type = "setExchangeRate"
	TypeSetState        Type = "setState"
)

// Event is a state-mutating command handed to the sequencer.
type Event interface {
	GetSeq() uint64
	SetSeq(seq uint64)
	GetType() Type
	GetTs() int64
	SetTs(ts int64)
	GetCaller() domain.Address
}

// BaseEvent carries the fields every command shares. Seq is assigned by the
// sequencer; Ts is unix microseconds.
type BaseEvent struct {
	Seq    uint64         `json:"seq"`
	Ts     int64          `json:"ts"`
	Caller domain.Address `json:"caller"`
}

func (e *BaseEvent) GetSeq() uint64            { return e.Seq }
func (e *BaseEvent) SetSeq(seq uint64)         { e.Seq = seq }
func (e *BaseEvent) GetTs() int64              { return e.Ts }
func (e *BaseEvent) SetTs(ts int64)            { e.Ts = ts }
func (e *BaseEvent) GetCaller() domain.Address { return e.Caller }

// SwapCommand exchanges FromAmount of FromAsset for ToAsset.
type SwapCommand struct {
	BaseEvent
	FromAsset  domain.AssetID  `json:"from_asset"`
	FromAmount decimal.Decimal `json:"from_amount"`
	ToAsset    domain.AssetID  `json:"to_asset"`
}

func (*SwapCommand) GetType() Type { return TypeSwap }

// AddLiquidityCommand deposits Amount of Asset.
type AddLiquidityCommand struct {
	BaseEvent
	Asset  domain.AssetID  `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}

func (*AddLiquidityCommand) GetType() Type { return TypeAddLiquidity }

// RemoveLiquidityCommand withdraws Amount of Asset.
type RemoveLiquidityCommand struct {
	BaseEvent
	Asset  domain.AssetID  `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}

func (*RemoveLiquidityCommand) GetType() Type { return TypeRemoveLiquidity }

// SetExchangeRateCommand stores the directional rate From -> To.
type SetExchangeRateCommand struct {
	BaseEvent
	From domain.AssetID  `json:"from"`
	To   domain.AssetID  `json:"to"`
	Rate decimal.Decimal `json:"rate"`
}

func (*SetExchangeRateCommand) GetType() Type { return TypeSetExchangeRate }

// SetStateCommand overwrites the operational state.
type SetStateCommand struct {
	BaseEvent
	State domain.OperationalState `json:"state"`
}

func (*SetStateCommand) GetType() Type { return TypeSetState }

// Journal outcomes.
const (
	OutcomePending  = "pending"
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
)

// JournalEntry is the write-ahead record of one command.
type JournalEntry struct {
	Seq       uint64          `json:"seq"`
	Type      Type            `json:"type"`
	Ts        int64           `json:"ts"`
	Caller    domain.Address  `json:"caller"`
	Payload   json.RawMessage `json:"payload"`
	Outcome   string          `json:"outcome"`
	ErrorCode string          `json:"error_code,omitempty"`
}

// NewJournalEntry encodes ev as a pending entry.
func NewJournalEntry(ev Event) (JournalEntry, error) {
	payload, err := EncodePayload(ev)
	if err != nil {
		return JournalEntry{}, err
	}
	return JournalEntry{
		Seq:     ev.GetSeq(),
		Type:    ev.GetType(),
		Ts:      ev.GetTs(),
		Caller:  ev.GetCaller(),
		Payload: payload,
		Outcome: OutcomePending,
	}, nil
}

// Decode rebuilds the command recorded in entry.
func Decode(entry JournalEntry) (Event, error) {
	var ev Event
	switch entry.Type {
	case TypeSwap:
		ev = &SwapCommand{}
	case TypeAddLiquidity:
		ev = &AddLiquidityCommand{}
	case TypeRemoveLiquidity:
		ev = &RemoveLiquidityCommand{}
	case TypeSetExchangeRate:
		ev = &SetExchangeRateCommand{}
	case TypeSetState:
		ev = &SetStateCommand{}
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCommand, entry.Type)
	}
	if err := json.Unmarshal(entry.Payload, ev); err != nil {
		return nil, fmt.Errorf("decode %s #%d: %w", entry.Type, entry.Seq, err)
	}
	return ev, nil
}

package api

import (
	"sort"

	"token_swap/internal/domain"

	"github.com/shopspring/decimal"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type StateResponse struct {
	State domain.OperationalState `json:"state"`
	Seq   uint64                  `json:"seq,omitempty"`
}

type SetStateRequest struct {
	State domain.OperationalState `json:"state"`
}

type RateResponse struct {
	From domain.AssetID  `json:"from"`
	To   domain.AssetID  `json:"to"`
	Rate decimal.Decimal `json:"rate"`
	Seq  uint64          `json:"seq,omitempty"`
}

type SetRateRequest struct {
	Rate decimal.Decimal `json:"rate"`
}

// SwapRequest is shared by /v1/swap and /v1/quote.
type SwapRequest struct {
	FromAsset  domain.AssetID  `json:"from_asset"`
	FromAmount decimal.Decimal `json:"from_amount"`
	ToAsset    domain.AssetID  `json:"to_asset"`
}

type SwapResponse struct {
	FromAsset  domain.AssetID  `json:"from_asset"`
	FromAmount decimal.Decimal `json:"from_amount"`
	ToAsset    domain.AssetID  `json:"to_asset"`
	ToAmount   decimal.Decimal `json:"to_amount"`
	Seq        uint64          `json:"seq,omitempty"`
}

type LiquidityRequest struct {
	Asset  domain.AssetID  `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}

// LiquidityResponse reports the provider's share after a deposit or
// withdrawal, or on a plain read.
type LiquidityResponse struct {
	Provider domain.Address  `json:"provider"`
	Asset    domain.AssetID  `json:"asset"`
	Share    decimal.Decimal `json:"share"`
	Seq      uint64          `json:"seq,omitempty"`
}

type BalanceResponse struct {
	Holder domain.Address  `json:"holder"`
	Asset  domain.AssetID  `json:"asset"`
	Amount decimal.Decimal `json:"amount"`
}

type HealthResponse struct {
	Status  string                  `json:"status"`
	State   domain.OperationalState `json:"state"`
	NextSeq uint64                  `json:"next_seq"`
	Streams int                     `json:"streams"`
}

func sortBalances(b []BalanceResponse) {
	sort.Slice(b, func(i, j int) bool { return b[i].Asset < b[j].Asset })
}

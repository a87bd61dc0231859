package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Notification topics.
const (
	TopicSwap             = "swap"
	TopicLiquidityAdded   = "liquidityAdded"
	TopicLiquidityRemoved = "liquidityRemoved"
)

// Notification is a structured record emitted after a committed mutation.
// Indexed returns the fields a subscriber can filter on, in declaration order.
type Notification interface {
	Topic() string
	Indexed() []string
	Header() NotificationHeader
}

// NotificationHeader carries the fields shared by every notification.
type NotificationHeader struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewHeader stamps a fresh notification header.
func NewHeader(now time.Time) NotificationHeader {
	return NotificationHeader{ID: uuid.NewString(), Timestamp: now.UTC()}
}

// SwapNotification is emitted by a successful swap.
type SwapNotification struct {
	NotificationHeader
	Caller     Address         `json:"caller"`
	FromAsset  AssetID         `json:"from_asset"`
	FromAmount decimal.Decimal `json:"from_amount"`
	ToAsset    AssetID         `json:"to_asset"`
	ToAmount   decimal.Decimal `json:"to_amount"`
}

func (SwapNotification) Topic() string { return TopicSwap }

func (n SwapNotification) Indexed() []string {
	return []string{string(n.Caller), string(n.FromAsset), string(n.ToAsset)}
}

func (n SwapNotification) Header() NotificationHeader { return n.NotificationHeader }

// LiquidityAddedNotification is emitted by a successful deposit.
type LiquidityAddedNotification struct {
	NotificationHeader
	Provider Address         `json:"provider"`
	Asset    AssetID         `json:"asset"`
	Amount   decimal.Decimal `json:"amount"`
}

func (LiquidityAddedNotification) Topic() string { return TopicLiquidityAdded }

func (n LiquidityAddedNotification) Indexed() []string {
	return []string{string(n.Provider), string(n.Asset)}
}

func (n LiquidityAddedNotification) Header() NotificationHeader { return n.NotificationHeader }

// LiquidityRemovedNotification is emitted by a successful withdrawal.
type LiquidityRemovedNotification struct {
	NotificationHeader
	Provider Address         `json:"provider"`
	Asset    AssetID         `json:"asset"`
	Amount   decimal.Decimal `json:"amount"`
}

func (LiquidityRemovedNotification) Topic() string { return TopicLiquidityRemoved }

func (n LiquidityRemovedNotification) Indexed() []string {
	return []string{string(n.Provider), string(n.Asset)}
}

func (n LiquidityRemovedNotification) Header() NotificationHeader { return n.NotificationHeader }

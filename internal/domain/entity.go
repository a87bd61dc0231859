package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetInfo represents catalog metadata for a fungible token
type AssetInfo struct {
	Asset        AssetID   `gorm:"primaryKey" json:"asset"`
	Ticker       string    `json:"ticker"`
	IconPath     string    `json:"icon_path"`
	IsActive     bool      `json:"is_active" gorm:"index"` // Listed for swapping
	LastSyncedAt time.Time `json:"last_synced_at"`         // Last icon sync time
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ExchangeRate is one directional entry of the rate table.
type ExchangeRate struct {
	From AssetID         `json:"from"`
	To   AssetID         `json:"to"`
	Rate decimal.Decimal `json:"rate"` // fixed-point, scaled by RateScale
}

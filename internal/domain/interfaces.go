package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// AssetValidator answers whether an identifier is a well-formed fungible asset.
type AssetValidator interface {
	IsValidAsset(id AssetID) bool
}

// BalanceOracle returns the balance a holder currently owns of an asset.
type BalanceOracle interface {
	Balance(holder Address, asset AssetID) (decimal.Decimal, error)
}

// TransferExecutor moves amount of asset between two principals. A returned
// error means nothing moved.
type TransferExecutor interface {
	Transfer(from, to Address, asset AssetID, amount decimal.Decimal) error
}

// Bank is the combined balance oracle and transfer executor.
type Bank interface {
	BalanceOracle
	TransferExecutor
}

// IdentityOracle resolves the invoking principal and the privileged owner.
type IdentityOracle interface {
	Caller(ctx context.Context) (Address, error)
	Owner() Address
}

// NotificationSink receives structured notifications for committed mutations.
type NotificationSink interface {
	Notify(n Notification)
}

// SinkFunc adapts a function to NotificationSink.
type SinkFunc func(Notification)

// Notify implements NotificationSink.
func (f SinkFunc) Notify(n Notification) { f(n) }

// MultiSink fans a notification out to every sink in order.
type MultiSink []NotificationSink

// Notify implements NotificationSink.
func (m MultiSink) Notify(n Notification) {
	for _, s := range m {
		if s != nil {
			s.Notify(n)
		}
	}
}

// NoopSink discards notifications.
type NoopSink struct{}

// Notify implements NotificationSink.
func (NoopSink) Notify(Notification) {}

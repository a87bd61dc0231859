package ledger

import (
	"sort"
	"sync"

	"token_swap/internal/domain"

	"github.com/shopspring/decimal"
)

// Store is the durable key-value state behind the ledger. Absent shares read
// as zero; absent rates read as (zero, false).
type Store interface {
	LoadState() (domain.OperationalState, bool, error)
	SaveState(state domain.OperationalState) error

	LoadRate(from, to domain.AssetID) (decimal.Decimal, bool, error)
	SaveRate(from, to domain.AssetID, rate decimal.Decimal) error
	ListRates() ([]domain.ExchangeRate, error)

	LoadShare(provider domain.Address, asset domain.AssetID) (decimal.Decimal, error)
	SaveShare(provider domain.Address, asset domain.AssetID, amount decimal.Decimal) error
	ListShares(provider domain.Address) ([]domain.LiquidityShare, error)
}

type ratePair struct {
	from, to domain.AssetID
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	state  *domain.OperationalState
	rates  map[ratePair]decimal.Decimal
	shares map[domain.ShareKey]decimal.Decimal
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rates:  make(map[ratePair]decimal.Decimal),
		shares: make(map[domain.ShareKey]decimal.Decimal),
	}
}

func (m *MemoryStore) LoadState() (domain.OperationalState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state == nil {
		return domain.StateInactive, false, nil
	}
	return *m.state, true, nil
}

func (m *MemoryStore) SaveState(state domain.OperationalState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = &state
	return nil
}

func (m *MemoryStore) LoadRate(from, to domain.AssetID) (decimal.Decimal, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rate, ok := m.rates[ratePair{from, to}]
	return rate, ok, nil
}

func (m *MemoryStore) SaveRate(from, to domain.AssetID, rate decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates[ratePair{from, to}] = rate
	return nil
}

func (m *MemoryStore) ListRates() ([]domain.ExchangeRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ExchangeRate, 0, len(m.rates))
	for pair, rate := range m.rates {
		out = append(out, domain.ExchangeRate{From: pair.from, To: pair.to, Rate: rate})
	}
	SortRates(out)
	return out, nil
}

func (m *MemoryStore) LoadShare(provider domain.Address, asset domain.AssetID) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shares[domain.ShareKey{Provider: provider, Asset: asset}], nil
}

func (m *MemoryStore) SaveShare(provider domain.Address, asset domain.AssetID, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shares[domain.ShareKey{Provider: provider, Asset: asset}] = amount
	return nil
}

func (m *MemoryStore) ListShares(provider domain.Address) ([]domain.LiquidityShare, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.LiquidityShare
	for key, amount := range m.shares {
		if key.Provider == provider {
			out = append(out, domain.LiquidityShare{Provider: key.Provider, Asset: key.Asset, Amount: amount})
		}
	}
	SortShares(out)
	return out, nil
}

// SortRates orders rates by (from, to) for deterministic listings.
func SortRates(rates []domain.ExchangeRate) {
	sort.Slice(rates, func(i, j int) bool {
		if rates[i].From != rates[j].From {
			return rates[i].From < rates[j].From
		}
		return rates[i].To < rates[j].To
	})
}

// SortShares orders shares by asset.
func SortShares(shares []domain.LiquidityShare) {
	sort.Slice(shares, func(i, j int) bool {
		return shares[i].Asset < shares[j].Asset
	})
}

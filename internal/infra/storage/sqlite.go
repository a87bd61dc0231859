package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"token_swap/internal/domain"
	"token_swap/internal/event"
	"token_swap/internal/ledger"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const settingLedgerState = "ledger.state"

// settingRow is a free-form key/value setting.
type settingRow struct {
	Name      string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

func (settingRow) TableName() string { return "settings" }

type rateRow struct {
	FromAsset string `gorm:"primaryKey"`
	ToAsset   string `gorm:"primaryKey"`
	Rate      string `gorm:"not null"`
	UpdatedAt time.Time
}

func (rateRow) TableName() string { return "exchange_rates" }

type shareRow struct {
	Provider  string `gorm:"primaryKey"`
	Asset     string `gorm:"primaryKey"`
	Amount    string `gorm:"not null"`
	UpdatedAt time.Time
}

func (shareRow) TableName() string { return "liquidity_shares" }

type journalRow struct {
	Seq       uint64 `gorm:"primaryKey;autoIncrement:false"`
	Type      string `gorm:"index"`
	Ts        int64
	Caller    string `gorm:"index"`
	Payload   string
	Outcome   string
	ErrorCode string
	CreatedAt time.Time
}

func (journalRow) TableName() string { return "journal" }

// SQLite persists ledger state, the command journal and the asset catalog.
// It implements ledger.Store and engine.Journal.
type SQLite struct {
	db *gorm.DB
}

var _ ledger.Store = (*SQLite)(nil)

// NewSQLite opens (creating if needed) the database at dbPath
func NewSQLite(dbPath string) (*SQLite, error) {
	if dbPath == "" {
		return nil, errors.New("sqlite: path not configured")
	}

	// Ensure directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return newSQLite(db)
}

// NewMemSQLite opens a private in-memory database. The pool is pinned to one
// connection since every sqlite memory connection is its own database.
func NewMemSQLite() (*SQLite, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return newSQLite(db)
}

func newSQLite(db *gorm.DB) (*SQLite, error) {
	// Auto Migration
	if err := db.AutoMigrate(&settingRow{}, &rateRow{}, &shareRow{}, &journalRow{}, &domain.AssetInfo{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Ledger State
// ======================================================================================

func (s *SQLite) LoadState() (domain.OperationalState, bool, error) {
	var row settingRow
	err := s.db.First(&row, "name = ?", settingLedgerState).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.StateInactive, false, nil
	}
	if err != nil {
		return domain.StateInactive, false, err
	}
	var state domain.OperationalState
	if err := state.UnmarshalText([]byte(row.Value)); err != nil {
		return domain.StateInactive, false, fmt.Errorf("stored state: %w", err)
	}
	return state, true, nil
}

func (s *SQLite) SaveState(state domain.OperationalState) error {
	text, err := state.MarshalText()
	if err != nil {
		return err
	}
	return s.db.Save(&settingRow{Name: settingLedgerState, Value: string(text)}).Error
}

// ======================================================================================
// Rate Operations
// ======================================================================================

func (s *SQLite) LoadRate(from, to domain.AssetID) (decimal.Decimal, bool, error) {
	var row rateRow
	err := s.db.First(&row, "from_asset = ? AND to_asset = ?", string(from), string(to)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	rate, err := decimal.NewFromString(row.Rate)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("stored rate %s -> %s: %w", from, to, err)
	}
	return rate, true, nil
}

func (s *SQLite) SaveRate(from, to domain.AssetID, rate decimal.Decimal) error {
	return s.db.Save(&rateRow{FromAsset: string(from), ToAsset: string(to), Rate: rate.String()}).Error
}

func (s *SQLite) ListRates() ([]domain.ExchangeRate, error) {
	var rows []rateRow
	if err := s.db.Order("from_asset, to_asset").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.ExchangeRate, 0, len(rows))
	for _, row := range rows {
		rate, err := decimal.NewFromString(row.Rate)
		if err != nil {
			return nil, fmt.Errorf("stored rate %s -> %s: %w", row.FromAsset, row.ToAsset, err)
		}
		out = append(out, domain.ExchangeRate{From: domain.AssetID(row.FromAsset), To: domain.AssetID(row.ToAsset), Rate: rate})
	}
	return out, nil
}

// ======================================================================================
// Share Operations
// ======================================================================================

func (s *SQLite) LoadShare(provider domain.Address, asset domain.AssetID) (decimal.Decimal, error) {
	var row shareRow
	err := s.db.First(&row, "provider = ? AND asset = ?", string(provider), string(asset)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil // Never seen reads as zero
	}
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(row.Amount)
}

func (s *SQLite) SaveShare(provider domain.Address, asset domain.AssetID, amount decimal.Decimal) error {
	return s.db.Save(&shareRow{Provider: string(provider), Asset: string(asset), Amount: amount.String()}).Error
}

func (s *SQLite) ListShares(provider domain.Address) ([]domain.LiquidityShare, error) {
	var rows []shareRow
	if err := s.db.Where("provider = ?", string(provider)).Order("asset").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.LiquidityShare, 0, len(rows))
	for _, row := range rows {
		amount, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("stored share %s/%s: %w", row.Provider, row.Asset, err)
		}
		out = append(out, domain.LiquidityShare{Provider: provider, Asset: domain.AssetID(row.Asset), Amount: amount})
	}
	return out, nil
}

// ======================================================================================
// Journal Operations
// ======================================================================================

// Append implements engine.Journal.
func (s *SQLite) Append(ctx context.Context, entry event.JournalEntry) error {
	row := journalRow{
		Seq:       entry.Seq,
		Type:      string(entry.Type),
		Ts:        entry.Ts,
		Caller:    string(entry.Caller),
		Payload:   string(entry.Payload),
		Outcome:   entry.Outcome,
		ErrorCode: entry.ErrorCode,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// Complete implements engine.Journal.
func (s *SQLite) Complete(ctx context.Context, seq uint64, outcome, errorCode string) error {
	res := s.db.WithContext(ctx).Model(&journalRow{}).Where("seq = ?", seq).
		Updates(map[string]any{"outcome": outcome, "error_code": errorCode})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("journal entry %d not found", seq)
	}
	return nil
}

// LastSeq implements engine.Journal.
func (s *SQLite) LastSeq(ctx context.Context) (uint64, error) {
	var last uint64
	err := s.db.WithContext(ctx).Model(&journalRow{}).Select("COALESCE(MAX(seq), 0)").Scan(&last).Error
	return last, err
}

// Entries implements engine.Journal.
func (s *SQLite) Entries(ctx context.Context, afterSeq uint64, limit int) ([]event.JournalEntry, error) {
	q := s.db.WithContext(ctx).Where("seq > ?", afterSeq).Order("seq")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []journalRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]event.JournalEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, event.JournalEntry{
			Seq:       row.Seq,
			Type:      event.Type(row.Type),
			Ts:        row.Ts,
			Caller:    domain.Address(row.Caller),
			Payload:   []byte(row.Payload),
			Outcome:   row.Outcome,
			ErrorCode: row.ErrorCode,
		})
	}
	return out, nil
}

// ======================================================================================
// Asset Catalog Operations
// ======================================================================================

// UpsertAsset creates or updates asset metadata
func (s *SQLite) UpsertAsset(asset *domain.AssetInfo) error {
	return s.db.Save(asset).Error
}

// GetAsset retrieves asset metadata by ID
func (s *SQLite) GetAsset(id domain.AssetID) (*domain.AssetInfo, error) {
	var asset domain.AssetInfo
	err := s.db.First(&asset, "asset = ?", string(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	return &asset, err
}

// ListAssets retrieves catalog entries, optionally only the active ones
func (s *SQLite) ListAssets(activeOnly bool) ([]domain.AssetInfo, error) {
	var assets []domain.AssetInfo
	q := s.db.Order("asset")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	err := q.Find(&assets).Error
	return assets, err
}

// ToggleActive flips whether an asset is listed
func (s *SQLite) ToggleActive(id domain.AssetID) (bool, error) {
	var asset domain.AssetInfo
	if err := s.db.First(&asset, "asset = ?", string(id)).Error; err != nil {
		return false, err
	}

	asset.IsActive = !asset.IsActive
	err := s.db.Save(&asset).Error
	return asset.IsActive, err
}

// DeleteAsset deletes an asset from the catalog
func (s *SQLite) DeleteAsset(id domain.AssetID) error {
	return s.db.Where("asset = ?", string(id)).Delete(&domain.AssetInfo{}).Error
}

// ======================================================================================
// Settings
// ======================================================================================

// SaveSetting saves a free-form setting
func (s *SQLite) SaveSetting(key, value string) error {
	return s.db.Save(&settingRow{Name: key, Value: value}).Error
}

// LoadSettings loads all settings as a map
func (s *SQLite) LoadSettings() (map[string]string, error) {
	var rows []settingRow
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, err
	}

	result := make(map[string]string)
	for _, row := range rows {
		result[row.Name] = row.Value
	}
	return result, nil
}

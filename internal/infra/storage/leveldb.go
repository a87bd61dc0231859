package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"token_swap/internal/domain"
	"token_swap/internal/event"
	"token_swap/internal/ledger"

	"github.com/shopspring/decimal"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Key layout. Components are joined with a NUL byte, which never appears in
// addresses or asset IDs.
var (
	keyState       = []byte("state")
	prefixRate     = []byte("rate\x00")
	prefixShare    = []byte("share\x00")
	prefixJournal  = []byte("journal\x00")
	prefixSetting  = []byte("setting\x00")
	writeSyncOpts  = &opt.WriteOptions{Sync: true}
	errNoSeparator = errors.New("malformed key")
)

// LevelDB is a persistent key-value implementation of ledger.Store and
// engine.Journal.
type LevelDB struct {
	db *leveldb.DB
}

var _ ledger.Store = (*LevelDB)(nil)

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

// NewMemLevelDB opens a LevelDB backed by memory, for tests and ephemeral runs.
func NewMemLevelDB() (*LevelDB, error) {
	db, err := leveldb.Open(lvlstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	return &LevelDB{db: db}, nil
}

// Close closes the database connection.
func (l *LevelDB) Close() error {
	return l.db.Close()
}

func joinKey(prefix []byte, parts ...string) []byte {
	return append(append([]byte(nil), prefix...), []byte(strings.Join(parts, "\x00"))...)
}

func (l *LevelDB) getDecimal(key []byte) (decimal.Decimal, bool, error) {
	raw, err := l.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	v, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("decode %q: %w", key, err)
	}
	return v, true, nil
}

func (l *LevelDB) LoadState() (domain.OperationalState, bool, error) {
	raw, err := l.db.Get(keyState, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return domain.StateInactive, false, nil
	}
	if err != nil {
		return domain.StateInactive, false, err
	}
	var state domain.OperationalState
	if err := state.UnmarshalText(raw); err != nil {
		return domain.StateInactive, false, fmt.Errorf("stored state: %w", err)
	}
	return state, true, nil
}

func (l *LevelDB) SaveState(state domain.OperationalState) error {
	text, err := state.MarshalText()
	if err != nil {
		return err
	}
	return l.db.Put(keyState, text, writeSyncOpts)
}

func (l *LevelDB) LoadRate(from, to domain.AssetID) (decimal.Decimal, bool, error) {
	return l.getDecimal(joinKey(prefixRate, string(from), string(to)))
}

func (l *LevelDB) SaveRate(from, to domain.AssetID, rate decimal.Decimal) error {
	return l.db.Put(joinKey(prefixRate, string(from), string(to)), []byte(rate.String()), writeSyncOpts)
}

// ListRates returns rates in key order, which is (from, to) order.
func (l *LevelDB) ListRates() ([]domain.ExchangeRate, error) {
	iter := l.db.NewIterator(util.BytesPrefix(prefixRate), nil)
	defer iter.Release()

	var out []domain.ExchangeRate
	for iter.Next() {
		parts := bytes.Split(iter.Key()[len(prefixRate):], []byte{0})
		if len(parts) != 2 {
			return nil, fmt.Errorf("%w: %q", errNoSeparator, iter.Key())
		}
		rate, err := decimal.NewFromString(string(iter.Value()))
		if err != nil {
			return nil, fmt.Errorf("decode rate %q: %w", iter.Key(), err)
		}
		out = append(out, domain.ExchangeRate{From: domain.AssetID(parts[0]), To: domain.AssetID(parts[1]), Rate: rate})
	}
	return out, iter.Error()
}

func (l *LevelDB) LoadShare(provider domain.Address, asset domain.AssetID) (decimal.Decimal, error) {
	v, _, err := l.getDecimal(joinKey(prefixShare, string(provider), string(asset)))
	return v, err
}

func (l *LevelDB) SaveShare(provider domain.Address, asset domain.AssetID, amount decimal.Decimal) error {
	return l.db.Put(joinKey(prefixShare, string(provider), string(asset)), []byte(amount.String()), writeSyncOpts)
}

func (l *LevelDB) ListShares(provider domain.Address) ([]domain.LiquidityShare, error) {
	prefix := joinKey(prefixShare, string(provider), "")
	iter := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var out []domain.LiquidityShare
	for iter.Next() {
		amount, err := decimal.NewFromString(string(iter.Value()))
		if err != nil {
			return nil, fmt.Errorf("decode share %q: %w", iter.Key(), err)
		}
		out = append(out, domain.LiquidityShare{
			Provider: provider,
			Asset:    domain.AssetID(iter.Key()[len(prefix):]),
			Amount:   amount,
		})
	}
	return out, iter.Error()
}

func journalKey(seq uint64) []byte {
	key := make([]byte, len(prefixJournal)+8)
	copy(key, prefixJournal)
	binary.BigEndian.PutUint64(key[len(prefixJournal):], seq)
	return key
}

// Append implements engine.Journal.
func (l *LevelDB) Append(_ context.Context, entry event.JournalEntry) error {
	key := journalKey(entry.Seq)
	if ok, err := l.db.Has(key, nil); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("journal entry %d already exists", entry.Seq)
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return l.db.Put(key, raw, writeSyncOpts)
}

// Complete implements engine.Journal.
func (l *LevelDB) Complete(_ context.Context, seq uint64, outcome, errorCode string) error {
	key := journalKey(seq)
	raw, err := l.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return fmt.Errorf("journal entry %d not found", seq)
	}
	if err != nil {
		return err
	}
	var entry event.JournalEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return err
	}
	entry.Outcome = outcome
	entry.ErrorCode = errorCode
	if raw, err = json.Marshal(entry); err != nil {
		return err
	}
	return l.db.Put(key, raw, writeSyncOpts)
}

// LastSeq implements engine.Journal.
func (l *LevelDB) LastSeq(context.Context) (uint64, error) {
	iter := l.db.NewIterator(util.BytesPrefix(prefixJournal), nil)
	defer iter.Release()
	if !iter.Last() {
		return 0, iter.Error()
	}
	return binary.BigEndian.Uint64(iter.Key()[len(prefixJournal):]), nil
}

// Entries implements engine.Journal.
func (l *LevelDB) Entries(_ context.Context, afterSeq uint64, limit int) ([]event.JournalEntry, error) {
	rng := util.BytesPrefix(prefixJournal)
	rng.Start = journalKey(afterSeq + 1)
	iter := l.db.NewIterator(rng, nil)
	defer iter.Release()

	var out []event.JournalEntry
	for iter.Next() {
		var entry event.JournalEntry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			return nil, fmt.Errorf("decode journal %x: %w", iter.Key(), err)
		}
		out = append(out, entry)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, iter.Error()
}

// SaveSetting saves a free-form setting
func (l *LevelDB) SaveSetting(key, value string) error {
	return l.db.Put(joinKey(prefixSetting, key), []byte(value), writeSyncOpts)
}

// LoadSettings loads all settings as a map
func (l *LevelDB) LoadSettings() (map[string]string, error) {
	iter := l.db.NewIterator(util.BytesPrefix(prefixSetting), nil)
	defer iter.Release()

	result := make(map[string]string)
	for iter.Next() {
		result[string(iter.Key()[len(prefixSetting):])] = string(iter.Value())
	}
	return result, iter.Error()
}

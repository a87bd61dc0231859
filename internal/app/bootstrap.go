package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"token_swap/internal/api"
	"token_swap/internal/domain"
	"token_swap/internal/engine"
	"token_swap/internal/execution"
	"token_swap/internal/infra"
	"token_swap/internal/infra/auth"
	"token_swap/internal/infra/storage"
	"token_swap/internal/ledger"
	"token_swap/internal/service"
)

// settingSeeded marks that owner seeding ran against the persistent store.
const settingSeeded = "bootstrap.seeded"

// Settings is implemented by stores that can remember bootstrap progress.
type Settings interface {
	SaveSetting(key, value string) error
	LoadSettings() (map[string]string, error)
}

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	ConfigPath string

	Config     *infra.Config
	Logger     *slog.Logger
	Metrics    *infra.Metrics
	Store      ledger.Store
	Journal    engine.Journal
	Catalog    *storage.SQLite
	Bank       *execution.PaperBank
	History    *service.History
	Hub        *api.Hub
	Ledger     *ledger.Ledger
	Sequencer  *engine.Sequencer
	Service    *service.LedgerService
	Server     *api.Server
	Downloader *infra.IconDownloader
	RateFeed   *infra.RateFeed

	closers []func() error
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap(configPath string) *Bootstrap {
	if configPath == "" {
		configPath = "configs/config.yaml"
	}
	return &Bootstrap{ConfigPath: configPath}
}

// Initialize loads the config file and wires every component.
func (b *Bootstrap) Initialize(ctx context.Context) error {
	cfg, err := infra.LoadConfig(b.ConfigPath)
	if err != nil {
		return err // Let main handle the error
	}
	return b.InitializeWith(ctx, cfg)
}

// InitializeWith wires every component from an already parsed config.
func (b *Bootstrap) InitializeWith(ctx context.Context, cfg *infra.Config) error {
	b.Config = cfg

	// 1. Setup Logger
	b.Logger = infra.NewLogger(cfg)
	slog.SetDefault(b.Logger)
	b.Logger.Info("Bootstrapping token swap...", slog.String("version", cfg.App.Version))

	// 2. Initialize Storage (DB)
	if err := b.openStorage(); err != nil {
		return err
	}
	b.Logger.Info("Storage initialized", slog.String("driver", cfg.Storage.Driver))

	// 3. Paper bank
	b.Bank = execution.NewPaperBank(cfg.Bank.MaxFills)
	for _, seed := range cfg.Bank.Balances {
		if err := b.Bank.Mint(domain.Address(seed.Holder), domain.AssetID(seed.Asset), seed.Amount); err != nil {
			return fmt.Errorf("seed balance %s/%s: %w", seed.Holder, seed.Asset, err)
		}
	}

	// 4. Ledger and its notification fan-out
	b.Metrics = infra.NewMetrics()
	b.History = service.NewHistory(service.DefaultHistorySize)
	b.Hub = api.NewHub(b.Metrics, b.Logger)
	l, err := ledger.New(ledger.Config{
		Store:    b.Store,
		Contract: cfg.ContractAddress(),
		Assets:   domain.ESDTValidator{},
		Bank:     b.Bank,
		Identity: domain.ContextIdentity{OwnerAddress: cfg.OwnerAddress()},
		Sink:     domain.MultiSink{b.History, b.Hub, b.Metrics},
		Logger:   b.Logger,
	})
	if err != nil {
		return err
	}
	b.Ledger = l
	b.Metrics.SetState(l.State())

	// 5. Sequencer
	seq, err := engine.NewSequencer(ctx, engine.Config{
		Ledger:    l,
		Journal:   b.Journal,
		Observer:  b.Metrics,
		InboxSize: cfg.Engine.InboxSize,
		DumpPath:  cfg.Engine.DumpPath,
		Logger:    b.Logger,
	})
	if err != nil {
		return err
	}
	b.Sequencer = seq

	// 6. Service and API
	svc, err := service.NewLedgerService(service.Config{
		Ledger:    l,
		Sequencer: seq,
		Bank:      b.Bank,
		History:   b.History,
		Catalog:   b.Catalog,
		Logger:    b.Logger,
	})
	if err != nil {
		return err
	}
	b.Service = svc

	keys := make(map[string]auth.Credential, len(cfg.HTTP.APIKeys))
	for _, k := range cfg.HTTP.APIKeys {
		keys[k.Key] = auth.Credential{Secret: k.Secret, Principal: domain.Address(k.Principal)}
	}
	b.Server, err = api.New(api.Config{
		Service:        svc,
		Verifier:       auth.NewVerifier(keys, cfg.HTTP.MaxClockSkew.Duration),
		Hub:            b.Hub,
		Metrics:        b.Metrics,
		RateLimitRPS:   cfg.HTTP.RateLimitRPS,
		RateLimitBurst: cfg.HTTP.RateLimitBurst,
		Logger:         b.Logger,
	})
	if err != nil {
		return err
	}

	// 7. Optional collaborators
	if cfg.Assets.IconURL != "" {
		if b.Downloader, err = infra.NewIconDownloader(cfg.Assets.IconDir, cfg.Assets.IconURL); err != nil {
			return err
		}
		b.Logger.Info("Icon downloader ready")
	}
	if cfg.RateFeed.URL != "" {
		b.RateFeed = infra.NewRateFeed(svc.ApplyFeedRate, cfg.RateFeed.URL, cfg.RateFeed.PollInterval.Duration, b.Metrics)
	}
	return nil
}

func (b *Bootstrap) openStorage() error {
	cfg := b.Config
	switch cfg.Storage.Driver {
	case infra.DriverSQLite:
		db, err := storage.NewSQLite(cfg.Storage.Path)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, db.Close)
		b.Store, b.Journal, b.Catalog = db, db, db
		return nil

	case infra.DriverLevelDB:
		db, err := storage.NewLevelDB(cfg.Storage.Path)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, db.Close)
		b.Store, b.Journal = db, db

	case infra.DriverMemory:
		b.Store = ledger.NewMemoryStore()

	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	// Drivers without a relational store keep the catalog in memory.
	catalog, err := storage.NewMemSQLite()
	if err != nil {
		return err
	}
	b.closers = append(b.closers, catalog.Close)
	b.Catalog = catalog
	return nil
}

// Seed applies the configured rates and initial state as the owner. It goes
// through the running sequencer, so Run must have been started. Persistent
// stores are seeded once; later boots keep whatever the owner changed.
func (b *Bootstrap) Seed(ctx context.Context) error {
	settings, persistent := b.Store.(Settings)
	if persistent {
		values, err := settings.LoadSettings()
		if err != nil {
			return err
		}
		if values[settingSeeded] != "" {
			b.Logger.Info("Ledger already seeded, skipping")
			return nil
		}
	}

	cfg := b.Config
	owner := cfg.OwnerAddress()
	for _, r := range cfg.Ledger.Rates {
		if _, err := b.Service.SetExchangeRate(ctx, owner, domain.AssetID(r.From), domain.AssetID(r.To), r.Rate); err != nil {
			return fmt.Errorf("seed rate %s -> %s: %w", r.From, r.To, err)
		}
	}
	state, err := domain.ParseOperationalState(cfg.Ledger.InitialState)
	if err != nil {
		return err
	}
	if _, err := b.Service.SetState(ctx, owner, state); err != nil {
		return fmt.Errorf("seed state: %w", err)
	}
	b.Metrics.SetState(state)

	if persistent {
		if err := settings.SaveSetting(settingSeeded, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return err
		}
	}
	b.Logger.Info("Ledger seeded", slog.Int("rates", len(cfg.Ledger.Rates)), slog.String("state", state.String()))
	return nil
}

// catalogAssets is the configured catalog plus every asset named by a seeded
// rate or balance.
func (b *Bootstrap) catalogAssets() []domain.AssetID {
	seen := make(map[domain.AssetID]bool)
	var out []domain.AssetID
	add := func(raw string) {
		id := domain.AssetID(raw)
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, a := range b.Config.Assets.Catalog {
		add(a)
	}
	for _, r := range b.Config.Ledger.Rates {
		add(r.From)
		add(r.To)
	}
	for _, s := range b.Config.Bank.Balances {
		add(s.Asset)
	}
	return out
}

// SyncAssets upserts the catalog and fetches missing icons in the background
func (b *Bootstrap) SyncAssets(ctx context.Context) {
	b.Logger.Info("Starting asset synchronization...")

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, 5) // Limit concurrent downloads

	for _, asset := range b.catalogAssets() {
		wg.Add(1)
		go func(id domain.AssetID) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}: // Acquire
			}
			defer func() { <-semaphore }() // Release

			// 1. Upsert to DB
			info := &domain.AssetInfo{
				Asset:     id,
				Ticker:    id.Ticker(),
				IsActive:  true,
				UpdatedAt: time.Now(),
			}

			// Check if exists to preserve listing and icon
			if existing, _ := b.Catalog.GetAsset(id); existing != nil {
				info.IsActive = existing.IsActive
				info.IconPath = existing.IconPath
				info.LastSyncedAt = existing.LastSyncedAt
				info.CreatedAt = existing.CreatedAt
			}

			if err := b.Catalog.UpsertAsset(info); err != nil {
				b.Logger.Error("Failed to upsert asset", slog.String("asset", string(id)), slog.Any("error", err))
				return
			}
			if b.Downloader == nil {
				return
			}

			// 2. Download Icon (if missing)
			path, err := b.Downloader.DownloadIcon(ctx, id)
			if err != nil {
				b.Logger.Warn("Failed to download icon", slog.String("asset", string(id)), slog.Any("error", err))
				return
			}
			info.IconPath = path
			info.LastSyncedAt = time.Now()
			if err := b.Catalog.UpsertAsset(info); err != nil {
				b.Logger.Error("Failed to save icon path", slog.String("asset", string(id)), slog.Any("error", err))
			}
		}(asset)
	}

	wg.Wait()
	b.Logger.Info("Asset synchronization completed")
}

// Close releases storage handles in reverse order of opening.
func (b *Bootstrap) Close() error {
	if b.Hub != nil {
		b.Hub.Close()
	}
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

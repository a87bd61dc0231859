package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"token_swap/internal/domain"

	"github.com/shopspring/decimal"
)

// feedQuote is one entry of the rate feed response.
type feedQuote struct {
	From string          `json:"from"`
	To   string          `json:"to"`
	Rate decimal.Decimal `json:"rate"`
}

// RateUpdateFunc applies a changed rate, normally by submitting an owner
// SetExchangeRate command.
type RateUpdateFunc func(ctx context.Context, rate domain.ExchangeRate) error

// RateFeed polls an upstream endpoint for exchange rates and forwards the ones
// that changed since the previous poll.
type RateFeed struct {
	onUpdate     RateUpdateFunc
	rates        map[[2]domain.AssetID]decimal.Decimal
	mu           sync.RWMutex
	pollInterval time.Duration
	retryBase    time.Duration
	apiURL       string
	httpClient   *http.Client
	metrics      *Metrics
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewRateFeed creates a feed polling apiURL every pollInterval.
func NewRateFeed(onUpdate RateUpdateFunc, apiURL string, pollInterval time.Duration, metrics *Metrics) *RateFeed {
	if pollInterval <= 0 {
		pollInterval = 60 * time.Second // Default: 1 minute
	}
	return &RateFeed{
		onUpdate:     onUpdate,
		rates:        make(map[[2]domain.AssetID]decimal.Decimal),
		pollInterval: pollInterval,
		retryBase:    time.Second,
		apiURL:       apiURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		metrics: metrics,
	}
}

// Start begins polling for rate updates
func (f *RateFeed) Start(ctx context.Context) error {
	if f.apiURL == "" {
		return fmt.Errorf("rate feed: url not configured")
	}
	// Create a cancellable context
	ctx, f.cancel = context.WithCancel(ctx)

	// Fetch immediately on start
	if err := f.fetchRates(ctx); err != nil {
		slog.Warn("Initial rate feed fetch failed", slog.Any("error", err))
		// Continue anyway - will retry on next tick
	}

	// Start polling goroutine
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Rate feed polling panic recovered", slog.Any("panic", r))
			}
		}()

		ticker := time.NewTicker(f.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Rate feed polling stopped")
				return
			case <-ticker.C:
				if err := f.fetchRates(ctx); err != nil {
					slog.Warn("Rate feed fetch failed", slog.Any("error", err))
				}
			}
		}
	}()

	return nil
}

// fetchRates polls the endpoint with retry logic
func (f *RateFeed) fetchRates(ctx context.Context) error {
	var lastErr error
	for i := 0; i < 3; i++ {
		if i > 0 {
			// Exponential backoff: 1s, 2s
			delay := CalculateBackoff(i, f.retryBase, 0)
			slog.Info("Retrying rate feed fetch", slog.Int("attempt", i), slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := f.doFetch(ctx)
		if err == nil {
			f.record(nil)
			return nil
		}
		lastErr = err
		slog.Warn("Rate feed fetch attempt failed", slog.Int("attempt", i+1), slog.Any("error", err))
		if !domain.IsRetriable(err) {
			break
		}
	}
	f.record(lastErr)
	return lastErr
}

func (f *RateFeed) doFetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.apiURL, nil)
	if err != nil {
		return domain.NewFatalNetworkError("fetch_rates", err)
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return domain.NewNetworkError("fetch_rates", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return domain.NewNetworkError("fetch_rates", fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	default:
		return domain.NewFatalNetworkError("fetch_rates", fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.NewNetworkError("fetch_rates", err)
	}

	var quotes []feedQuote
	if err := json.Unmarshal(body, &quotes); err != nil {
		return domain.NewFatalNetworkError("fetch_rates", err)
	}
	if len(quotes) == 0 {
		return domain.NewFatalNetworkError("fetch_rates", fmt.Errorf("empty response from rate feed"))
	}

	for _, q := range quotes {
		rate := domain.ExchangeRate{From: domain.AssetID(q.From), To: domain.AssetID(q.To), Rate: q.Rate}
		if !domain.IsValidAssetID(rate.From) || !domain.IsValidAssetID(rate.To) || !domain.IsPositiveInteger(rate.Rate) {
			slog.Warn("Rate feed entry skipped",
				slog.String("from", q.From),
				slog.String("to", q.To),
				slog.String("rate", q.Rate.String()),
			)
			continue
		}
		f.apply(ctx, rate)
	}
	return nil
}

// apply forwards rate when it differs from the last accepted value.
func (f *RateFeed) apply(ctx context.Context, rate domain.ExchangeRate) {
	key := [2]domain.AssetID{rate.From, rate.To}

	f.mu.RLock()
	old, seen := f.rates[key]
	f.mu.RUnlock()
	if seen && old.Equal(rate.Rate) {
		return
	}
	if f.onUpdate != nil {
		if err := f.onUpdate(ctx, rate); err != nil {
			// Not cached, so the next poll tries again.
			slog.Warn("Rate feed update rejected",
				slog.String("from", string(rate.From)),
				slog.String("to", string(rate.To)),
				slog.Any("error", err),
			)
			return
		}
	}

	f.mu.Lock()
	f.rates[key] = rate.Rate
	f.mu.Unlock()

	slog.Info("Exchange rate updated",
		slog.String("from", string(rate.From)),
		slog.String("to", string(rate.To)),
		slog.String("rate", rate.Rate.String()),
		slog.String("old_rate", old.String()),
	)
}

func (f *RateFeed) record(err error) {
	if f.metrics != nil {
		f.metrics.RecordFeedPoll(err)
	}
}

// Stop stops the polling
func (f *RateFeed) Stop() {
	if f.cancel != nil {
		f.cancel()
		f.wg.Wait()
	}
}

// GetRate returns the last rate accepted for from -> to.
func (f *RateFeed) GetRate(from, to domain.AssetID) (decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rate, ok := f.rates[[2]domain.AssetID{from, to}]
	return rate, ok
}

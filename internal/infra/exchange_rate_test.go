package infra

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"token_swap/internal/domain"

	"github.com/shopspring/decimal"
)

const feedBody = `[
	{"from": "TOKENA-a1b2c3", "to": "TOKENB-d4e5f6", "rate": 2000},
	{"from": "TOKENB-d4e5f6", "to": "TOKENA-a1b2c3", "rate": "500"},
	{"from": "bogus", "to": "TOKENA-a1b2c3", "rate": 1},
	{"from": "TOKENA-a1b2c3", "to": "TOKENC-aaaaaa", "rate": 0}
]`

type updateRecorder struct {
	mu      sync.Mutex
	updates []domain.ExchangeRate
	err     error
}

func (r *updateRecorder) apply(_ context.Context, rate domain.ExchangeRate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.updates = append(r.updates, rate)
	return nil
}

func (r *updateRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func newTestFeed(url string, rec *updateRecorder) *RateFeed {
	feed := NewRateFeed(rec.apply, url, time.Hour, NewMetrics())
	feed.retryBase = time.Millisecond
	return feed
}

func TestRateFeed_FetchRates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(feedBody))
	}))
	defer server.Close()

	rec := &updateRecorder{}
	feed := newTestFeed(server.URL, rec)

	if err := feed.fetchRates(context.Background()); err != nil {
		t.Fatalf("fetchRates failed: %v", err)
	}

	// Invalid entries are skipped
	if rec.count() != 2 {
		t.Fatalf("Expected 2 updates, got %d", rec.count())
	}
	rate, ok := feed.GetRate("TOKENA-a1b2c3", "TOKENB-d4e5f6")
	if !ok || !rate.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("Expected cached rate 2000, got %s (%v)", rate, ok)
	}

	// Unchanged rates are not forwarded again
	if err := feed.fetchRates(context.Background()); err != nil {
		t.Fatalf("second fetchRates failed: %v", err)
	}
	if rec.count() != 2 {
		t.Errorf("Expected no new updates, got %d total", rec.count())
	}
}

func TestRateFeed_RejectedUpdateIsRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"from": "TOKENA-a1b2c3", "to": "TOKENB-d4e5f6", "rate": 1500}]`))
	}))
	defer server.Close()

	rec := &updateRecorder{err: errors.New("not owner")}
	feed := newTestFeed(server.URL, rec)

	feed.fetchRates(context.Background())
	if _, ok := feed.GetRate("TOKENA-a1b2c3", "TOKENB-d4e5f6"); ok {
		t.Fatal("Rejected rate must not be cached")
	}

	rec.err = nil
	feed.fetchRates(context.Background())
	if rec.count() != 1 {
		t.Errorf("Expected the rate to be forwarded once accepted, got %d", rec.count())
	}
}

func TestRateFeed_StartStop(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(feedBody))
	}))
	defer server.Close()

	feed := newTestFeed(server.URL, &updateRecorder{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := feed.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if calls.Load() < 1 {
		t.Error("Expected at least one API call")
	}

	// Stop should complete without hanging
	feed.Stop()
}

func TestRateFeed_EmptyResponse(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	feed := newTestFeed(server.URL, &updateRecorder{})

	err := feed.fetchRates(context.Background())
	if err == nil {
		t.Fatal("Empty response should return error")
	}
	if domain.IsRetriable(err) {
		t.Error("Empty response should not be retriable")
	}
	if calls.Load() != 1 {
		t.Errorf("Fatal errors must not be retried, got %d calls", calls.Load())
	}
}

func TestRateFeed_RetryOnFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(feedBody))
	}))
	defer server.Close()

	rec := &updateRecorder{}
	feed := newTestFeed(server.URL, rec)

	// Fetch rates (should retry 2 times and succeed on 3rd)
	if err := feed.fetchRates(context.Background()); err != nil {
		t.Fatalf("fetchRates should succeed after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 calls, got %d", calls.Load())
	}
}

func TestRateFeed_StartRequiresURL(t *testing.T) {
	feed := NewRateFeed(nil, "", 0, nil)
	if err := feed.Start(context.Background()); err == nil {
		t.Error("Start without URL should fail")
	}
}

func TestCalculateBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 10 * time.Second},
	}
	for _, c := range cases {
		if got := CalculateBackoff(c.attempt, time.Second, 10*time.Second); got != c.want {
			t.Errorf("attempt %d: expected %v, got %v", c.attempt, c.want, got)
		}
	}
	if got := CalculateBackoff(4, time.Second, 0); got != 8*time.Second {
		t.Errorf("uncapped attempt 4: expected 8s, got %v", got)
	}
}

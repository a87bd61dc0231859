package infra

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"token_swap/internal/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_ObserveCommand(t *testing.T) {
	m := NewMetrics()

	m.ObserveCommand("swap", nil, 1000*time.Nanosecond)
	m.ObserveCommand("swap", nil, 2000*time.Nanosecond)
	m.ObserveCommand("swap", &domain.OpError{Op: "swap", Err: domain.ErrRateNotSet}, 3000*time.Nanosecond)

	snap := m.Snapshot()

	if snap.CommandsProcessed != 3 {
		t.Errorf("Expected 3 commands, got %d", snap.CommandsProcessed)
	}
	if snap.ErrorsTotal != 1 {
		t.Errorf("Expected 1 error, got %d", snap.ErrorsTotal)
	}

	// Average latency: (1000 + 2000 + 3000) / 3 = 2000
	if snap.AvgLatencyNs != 2000 {
		t.Errorf("Expected avg latency 2000, got %d", snap.AvgLatencyNs)
	}

	if got := testutil.ToFloat64(m.commands.WithLabelValues("swap", "ok")); got != 2 {
		t.Errorf("Expected 2 ok swaps, got %v", got)
	}
	if got := testutil.ToFloat64(m.commands.WithLabelValues("swap", "RateNotSet")); got != 1 {
		t.Errorf("Expected 1 RateNotSet swap, got %v", got)
	}
}

func TestMetrics_Streams(t *testing.T) {
	m := NewMetrics()

	m.IncrementStreams()
	m.IncrementStreams()
	m.IncrementStreams()

	snap := m.Snapshot()
	if snap.ActiveStreams != 3 {
		t.Errorf("Expected 3 streams, got %d", snap.ActiveStreams)
	}

	m.DecrementStreams()
	if got := testutil.ToFloat64(m.streams); got != 2 {
		t.Errorf("Expected gauge 2, got %v", got)
	}
}

func TestMetrics_StateAndNotifications(t *testing.T) {
	m := NewMetrics()

	m.SetState(domain.StatePaused)
	if got := testutil.ToFloat64(m.state); got != 2 {
		t.Errorf("Expected state gauge 2, got %v", got)
	}

	m.Notify(domain.SwapNotification{})
	m.Notify(domain.LiquidityAddedNotification{})
	m.Notify(domain.SwapNotification{})
	if got := testutil.ToFloat64(m.notifications.WithLabelValues(domain.TopicSwap)); got != 2 {
		t.Errorf("Expected 2 swap notifications, got %v", got)
	}
}

func TestMetrics_FeedPollOutcomes(t *testing.T) {
	m := NewMetrics()

	m.RecordFeedPoll(nil)
	m.RecordFeedPoll(domain.NewNetworkError("fetch_rates", errors.New("timeout")))
	m.RecordFeedPoll(domain.NewFatalNetworkError("fetch_rates", errors.New("404")))

	for _, outcome := range []string{"ok", "error", "fatal"} {
		if got := testutil.ToFloat64(m.feedPolls.WithLabelValues(outcome)); got != 1 {
			t.Errorf("Expected 1 %s poll, got %v", outcome, got)
		}
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.ObserveCommand("addLiquidity", nil, time.Millisecond)
	m.RecordThrottle("rate_limited")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`token_swap_ledger_commands_total{op="addLiquidity",outcome="ok"} 1`,
		`token_swap_api_throttles_total{reason="rate_limited"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected exposition to contain %q", want)
		}
	}
}

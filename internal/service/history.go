package service

import (
	"sync"

	"token_swap/internal/domain"
)

// DefaultHistorySize is the number of notifications kept for listing.
const DefaultHistorySize = 256

// Record is one notification as listed by the API.
type Record struct {
	Topic   string              `json:"topic"`
	Indexed []string            `json:"indexed"`
	Data    domain.Notification `json:"data"`
}

// History is a fixed-size ring of the most recent notifications. It is a
// domain.NotificationSink.
type History struct {
	mu    sync.RWMutex
	buf   []Record
	next  int
	count int
}

// NewHistory creates a ring keeping the last size notifications.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{buf: make([]Record, size)}
}

// Notify implements domain.NotificationSink.
func (h *History) Notify(n domain.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf[h.next] = Record{Topic: n.Topic(), Indexed: n.Indexed(), Data: n}
	h.next = (h.next + 1) % len(h.buf)
	if h.count < len(h.buf) {
		h.count++
	}
}

// Recent returns up to limit notifications, newest first. limit <= 0 returns
// everything held.
func (h *History) Recent(limit int) []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 || limit > h.count {
		limit = h.count
	}
	out := make([]Record, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (h.next - i + len(h.buf)) % len(h.buf)
		out = append(out, h.buf[idx])
	}
	return out
}

// Len returns the number of notifications held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

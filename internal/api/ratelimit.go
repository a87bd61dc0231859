package api

import (
	"net/http"
	"sync"
	"time"

	"token_swap/internal/domain"

	"golang.org/x/time/rate"
)

const visitorIdleTTL = 5 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per authenticated principal.
type RateLimiter struct {
	mu       sync.Mutex
	rps      rate.Limit
	burst    int
	visitors map[domain.Address]*visitor
	onReject func()
	clockNow func() time.Time
}

// NewRateLimiter returns nil when rps <= 0, which disables limiting.
func NewRateLimiter(rps float64, burst int, onReject func()) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		visitors: make(map[domain.Address]*visitor),
		onReject: onReject,
		clockNow: time.Now,
	}
}

// Allow reports whether principal may make another request now.
func (r *RateLimiter) Allow(principal domain.Address) bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clockNow()
	v, ok := r.visitors[principal]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(r.rps, r.burst)}
		r.visitors[principal] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Sweep forgets principals idle for longer than the TTL.
func (r *RateLimiter) Sweep() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.clockNow().Add(-visitorIdleTTL)
	for id, v := range r.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(r.visitors, id)
		}
	}
}

// Middleware must run after authentication; it keys on the caller.
func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		caller, _ := domain.CallerFrom(req.Context())
		if !r.Allow(caller) {
			if r.onReject != nil {
				r.onReject()
			}
			writeError(w, http.StatusTooManyRequests, "RateLimited", "too many requests")
			return
		}
		next.ServeHTTP(w, req)
	})
}

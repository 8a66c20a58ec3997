/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/friendsincode/wayfarer/internal/auth"
	"github.com/friendsincode/wayfarer/internal/telemetry"
)

// RateLimit configures the per-user limiter on planning endpoints. A
// non-positive RPS disables limiting.
type RateLimit struct {
	RPS   float64
	Burst int
}

// idleLimiterTTL is how long an unused limiter is kept.
const idleLimiterTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// userLimiter holds one token bucket per authenticated user.
type userLimiter struct {
	cfg      RateLimit
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	lastGC   time.Time
	now      func() time.Time
}

func newUserLimiter(cfg RateLimit) *userLimiter {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	return &userLimiter{
		cfg:      cfg,
		limiters: make(map[string]*limiterEntry),
		now:      time.Now,
	}
}

func (l *userLimiter) allow(userID string) bool {
	if l.cfg.RPS <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastGC) > idleLimiterTTL {
		for id, e := range l.limiters {
			if now.Sub(e.lastSeen) > idleLimiterTTL {
				delete(l.limiters, id)
			}
		}
		l.lastGC = now
	}

	e, ok := l.limiters[userID]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(l.cfg.RPS), l.cfg.Burst)}
		l.limiters[userID] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

func (l *userLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(auth.UserID(r.Context())) {
			endpoint := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				endpoint = rc.RoutePattern()
			}
			telemetry.RateLimitedTotal.WithLabelValues(endpoint).Inc()
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate_limited")
			return
		}
		next.ServeHTTP(w, r)
	})
}

package httpapi

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultRateLimitBurst = 5
	rateLimitIdleTTL      = 10 * time.Minute
	rateLimitSweepEvery   = time.Minute
)

// clientRateLimiter is a per-client token bucket. Idle clients are dropped
// on access once rateLimitSweepEvery has passed since the last sweep.
type clientRateLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	clients   map[string]*clientLimiter
	lastSweep time.Time
	now       func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newClientRateLimiter returns nil when perMinute <= 0, which disables
// limiting.
func newClientRateLimiter(perMinute int, now func() time.Time) *clientRateLimiter {
	if perMinute <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	burst := defaultRateLimitBurst
	if perMinute < burst {
		burst = perMinute
	}
	return &clientRateLimiter{
		limit:     rate.Limit(float64(perMinute) / 60.0),
		burst:     burst,
		clients:   map[string]*clientLimiter{},
		lastSweep: now(),
		now:       now,
	}
}

func (l *clientRateLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= rateLimitSweepEvery {
		l.sweepLocked(now)
	}
	entry, ok := l.clients[key]
	if !ok {
		entry = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

func (l *clientRateLimiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-rateLimitIdleTTL)
	for key, entry := range l.clients {
		if entry.lastSeen.Before(cutoff) {
			delete(l.clients, key)
		}
	}
	l.lastSweep = now
}

func (l *clientRateLimiter) size() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

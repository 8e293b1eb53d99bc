package server

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL  = 10 * time.Minute
	limiterSweepGap = 5 * time.Minute
)

// storeLimiter hands out one token bucket per store id. Buckets of stores
// that stay idle for limiterIdleTTL are evicted.
type storeLimiter struct {
	mu      sync.Mutex
	buckets *cache.Cache
	limit   rate.Limit
	burst   int
}

// newStoreLimiter returns nil when perSecond is not positive, which disables
// limiting.
func newStoreLimiter(perSecond float64, burst int) *storeLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &storeLimiter{
		buckets: cache.New(limiterIdleTTL, limiterSweepGap),
		limit:   rate.Limit(perSecond),
		burst:   burst,
	}
}

// Allow reports whether storeID may make another request now.
func (l *storeLimiter) Allow(storeID string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var lim *rate.Limiter
	if v, ok := l.buckets.Get(storeID); ok {
		lim = v.(*rate.Limiter)
	} else {
		lim = rate.NewLimiter(l.limit, l.burst)
	}
	// Re-set on every hit to slide the idle expiry.
	l.buckets.SetDefault(storeID, lim)
	return lim.Allow()
}

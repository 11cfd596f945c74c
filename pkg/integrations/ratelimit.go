package integrations

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/Gabiro3/blimp2/pkg/types"
)

const maxTrackedLimiters = 4096

// RateLimiter provides per-user, per-app rate limiting so one busy user
// cannot hammer an upstream API. Idle limiters are evicted least-recently-used.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	config   types.RateLimitConfig
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config types.RateLimitConfig) *RateLimiter {
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 5
	}
	if config.BurstSize <= 0 {
		config.BurstSize = 10
	}

	cache, _ := lru.New[string, *rate.Limiter](maxTrackedLimiters)
	return &RateLimiter{limiters: cache, config: config}
}

func limiterKey(userID, app string) string {
	return userID + ":" + app
}

func (r *RateLimiter) limiter(userID, app string) *rate.Limiter {
	key := limiterKey(userID, app)

	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters.Get(key); ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(r.config.RequestsPerSecond), r.config.BurstSize)
	r.limiters.Add(key, l)
	return l
}

// Allow reports whether a request may proceed right now.
func (r *RateLimiter) Allow(userID, app string) bool {
	return r.limiter(userID, app).Allow()
}

// Wait blocks until a request is allowed or the context is done.
func (r *RateLimiter) Wait(ctx context.Context, userID, app string) error {
	return r.limiter(userID, app).Wait(ctx)
}

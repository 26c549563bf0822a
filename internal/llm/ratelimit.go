package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures client-side request pacing.
type RateLimitConfig struct {
	// RequestsPerMinute limits the number of completion requests per minute (0 = unlimited)
	RequestsPerMinute int
	// BurstSize allows temporary burst above the rate limit
	BurstSize int
}

// DefaultRateLimitConfig returns conservative defaults for free-tier keys.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 25,
		BurstSize:         3,
	}
}

// RateLimiter paces completion requests. It is safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter

	mu    sync.Mutex
	stats RateLimitStats
}

// RateLimitStats reports limiter activity.
type RateLimitStats struct {
	Requests  int64         // Requests admitted
	Delayed   int64         // Requests that had to wait for a token
	TotalWait time.Duration // Time spent waiting
}

// NewRateLimiter creates a limiter. RequestsPerMinute <= 0 admits everything.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a request may proceed. It returns ErrCancelled or
// ErrTimeout if ctx ends first or its deadline is too close to ever get a
// token.
func (r *RateLimiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := r.limiter.Wait(ctx); err != nil {
		if ctxErr := contextError(ctx); ctxErr != nil {
			return ctxErr
		}
		if _, ok := ctx.Deadline(); ok {
			return errors.Join(ErrTimeout, err)
		}
		return fmt.Errorf("rate limiter: %w", err)
	}
	waited := time.Since(start)

	r.mu.Lock()
	r.stats.Requests++
	if waited > time.Millisecond {
		r.stats.Delayed++
		r.stats.TotalWait += waited
	}
	r.mu.Unlock()
	return nil
}

// Stats returns a snapshot of limiter activity.
func (r *RateLimiter) Stats() RateLimitStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

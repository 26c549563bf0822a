package llm

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig configures the transport's retry behaviour on 5xx responses.
type RetryConfig struct {
	MaxRetries   int           // Additional attempts after the first (0 disables retries)
	InitialDelay time.Duration // First backoff; each later one doubles (default 1s)
	Timeout      time.Duration // Budget shared by every attempt and backoff (default 60s)
}

// DefaultRetryConfig returns the retry policy used when none is given.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Second,
		Timeout:      60 * time.Second,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	d := DefaultRetryConfig()
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = d.InitialDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}

// newBackOff returns an unjittered doubling schedule: 1s, 2s, 4s, ...
func (c RetryConfig) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = c.Timeout
	b.Reset()
	return b
}

// isRetryableStatus reports whether a response status warrants another attempt.
func isRetryableStatus(code int) bool {
	return code >= 500
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return contextError(ctx)
	case <-timer.C:
		return nil
	}
}

package fetcher

import (
	"context"
	"math/rand/v2"
	"time"
)

// Clock abstracts time so retry behaviour can be tested without waiting.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryPolicy decides how often and how patiently a page is requested.
//
// Backoff is waited after failed attempt n (1-based) when another attempt
// follows. Jitter is waited after a success, before control returns to the
// caller, to space out consecutive requests to the portal.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Jitter      func() time.Duration
}

// DefaultRetryPolicy is 3 attempts, 2^n second backoff and 1-3s jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     ExponentialBackoff(time.Second),
		Jitter:      UniformJitter(time.Second, 3*time.Second),
	}
}

// ExponentialBackoff returns base * 2^attempt.
func ExponentialBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return base * time.Duration(1<<uint(attempt))
	}
}

// UniformJitter returns a duration drawn uniformly from [min, max].
func UniformJitter(min, max time.Duration) func() time.Duration {
	return func() time.Duration {
		if max <= min {
			return min
		}
		return min + time.Duration(rand.Int64N(int64(max-min)+1))
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	if p.Backoff == nil {
		return 0
	}
	return p.Backoff(attempt)
}

func (p RetryPolicy) jitter() time.Duration {
	if p.Jitter == nil {
		return 0
	}
	return p.Jitter()
}

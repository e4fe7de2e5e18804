package inference

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy governs how transient provider faults are retried.
// MaxRetries counts retries only; a policy with MaxRetries=2 runs fn at
// most three times.
type RetryPolicy struct {
	MaxRetries        int
	BaseDelay         float64 // seconds
	MaxDelay          float64 // seconds; also caps honored Retry-After values
	BackoffMultiplier float64
	Jitter            bool
	OnRetry           func(err error, attempt int, delay time.Duration)
}

// DefaultRetryPolicy is tuned for interactive review runs: short initial
// backoff, capped at a minute.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        2,
		BaseDelay:         1.0,
		MaxDelay:          60.0,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// Delay returns the backoff before retry attempt n (0-indexed), with
// jitter in [0.5x, 1.5x] when enabled.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	seconds := p.BaseDelay * math.Pow(p.BackoffMultiplier, float64(attempt))
	if seconds > p.MaxDelay {
		seconds = p.MaxDelay
	}
	if p.Jitter {
		seconds *= 0.5 + rand.Float64()
	}
	return time.Duration(seconds * float64(time.Second))
}

// Retry runs fn, retrying transient faults per the policy. Fatal faults
// and exhausted retries return the last error unchanged; cancellation
// while waiting out a backoff returns an AbortError.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	result, err := fn(ctx)
	for attempt := 0; err != nil && attempt < policy.MaxRetries; attempt++ {
		if !IsTransient(err) {
			return zero, err
		}

		delay := policy.Delay(attempt)
		if rl, ok := err.(*RateLimitError); ok && rl.RetryAfter != nil {
			wait := time.Duration(*rl.RetryAfter * float64(time.Second))
			if wait > time.Duration(policy.MaxDelay*float64(time.Second)) {
				// Provider asked us to wait longer than we are willing to.
				return zero, err
			}
			delay = wait
		}

		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt+1, delay)
		}

		select {
		case <-ctx.Done():
			return zero, &AbortError{Fault: Fault{Message: "request cancelled during retry", Cause: ctx.Err()}}
		case <-time.After(delay):
		}

		result, err = fn(ctx)
	}
	if err != nil {
		return zero, err
	}
	return result, nil
}

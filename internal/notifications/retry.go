package notifications

import (
	"context"
	"errors"
	"math"
	"time"
)

// RetryPolicy is a bounded exponential-backoff retry loop.
// The wait before attempt n+1 is BaseDelay * Multiplier^(n-1), unless the
// failure carried a Retry-After hint, which wins up to MaxRetryAfter.
type RetryPolicy struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	Multiplier    float64
	MaxRetryAfter time.Duration // zero leaves hints uncapped
	Retryable     func(error) bool
	Sleep         func(ctx context.Context, d time.Duration) error
}

// DefaultMaxRetryAfter bounds how long a server-supplied Retry-After may
// hold up a cycle.
const DefaultMaxRetryAfter = time.Minute

// DefaultRetryPolicy returns a policy with the given attempts and base delay,
// doubling delay, retrying DeliveryErrors that report Retryable.
func DefaultRetryPolicy(maxAttempts int, baseDelay time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   maxAttempts,
		BaseDelay:     baseDelay,
		Multiplier:    2,
		MaxRetryAfter: DefaultMaxRetryAfter,
		Retryable:     IsRetryable,
		Sleep:         sleepCtx,
	}
}

// Backoff returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int, err error) time.Duration {
	var de *DeliveryError
	if errors.As(err, &de) && de.RetryAfter > 0 {
		if p.MaxRetryAfter > 0 && de.RetryAfter > p.MaxRetryAfter {
			return p.MaxRetryAfter
		}
		return de.RetryAfter
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 2
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(mult, float64(attempt-1)))
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts are exhausted. It returns the number of attempts made.
// onRetry, when non-nil, is called before each wait.
func (p RetryPolicy) Do(ctx context.Context, fn func(attempt int) error, onRetry func(attempt int, wait time.Duration, err error)) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn(attempt)
		if err == nil {
			return attempt, nil
		}
		if !retryable(err) || attempt == maxAttempts {
			return attempt, err
		}
		wait := p.Backoff(attempt, err)
		if onRetry != nil {
			onRetry(attempt, wait, err)
		}
		if serr := sleep(ctx, wait); serr != nil {
			return attempt, serr
		}
	}
	return maxAttempts, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

package notifications

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingPolicy(maxAttempts int, base time.Duration, waits *[]time.Duration) RetryPolicy {
	p := DefaultRetryPolicy(maxAttempts, base)
	p.Sleep = func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return p
}

func TestRetryPolicy_ExponentialBackoff(t *testing.T) {
	var waits []time.Duration
	p := recordingPolicy(4, time.Second, &waits)

	attempts, err := p.Do(context.Background(), func(int) error {
		return &DeliveryError{StatusCode: http.StatusServiceUnavailable}
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, waits)
}

func TestRetryPolicy_SucceedsAfterRetry(t *testing.T) {
	var waits []time.Duration
	p := recordingPolicy(3, time.Millisecond, &waits)

	attempts, err := p.Do(context.Background(), func(attempt int) error {
		if attempt < 2 {
			return &DeliveryError{StatusCode: http.StatusTooManyRequests}
		}
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Len(t, waits, 1)
}

func TestRetryPolicy_NonRetryableStopsImmediately(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound} {
		var waits []time.Duration
		p := recordingPolicy(5, time.Second, &waits)

		attempts, err := p.Do(context.Background(), func(int) error {
			return &DeliveryError{StatusCode: status}
		}, nil)

		require.Error(t, err)
		assert.Equal(t, 1, attempts, "status %d", status)
		assert.Empty(t, waits)
	}
}

func TestRetryPolicy_RetryAfterWins(t *testing.T) {
	var waits []time.Duration
	p := recordingPolicy(2, time.Second, &waits)

	_, _ = p.Do(context.Background(), func(int) error {
		return &DeliveryError{StatusCode: http.StatusTooManyRequests, RetryAfter: 7 * time.Second}
	}, nil)

	assert.Equal(t, []time.Duration{7 * time.Second}, waits)
}

func TestRetryPolicy_RetryAfterCapped(t *testing.T) {
	var waits []time.Duration
	p := recordingPolicy(3, time.Second, &waits)

	_, _ = p.Do(context.Background(), func(int) error {
		return &DeliveryError{StatusCode: http.StatusTooManyRequests, RetryAfter: 6 * time.Hour}
	}, nil)

	assert.Equal(t, []time.Duration{DefaultMaxRetryAfter, DefaultMaxRetryAfter}, waits)

	p.MaxRetryAfter = 0
	assert.Equal(t, 6*time.Hour, p.Backoff(1, &DeliveryError{RetryAfter: 6 * time.Hour}), "zero disables the cap")
}

func TestRetryPolicy_OnRetryCallback(t *testing.T) {
	var waits []time.Duration
	p := recordingPolicy(3, time.Second, &waits)
	var seen []int

	_, _ = p.Do(context.Background(), func(int) error {
		return &DeliveryError{}
	}, func(attempt int, _ time.Duration, _ error) {
		seen = append(seen, attempt)
	})

	assert.Equal(t, []int{1, 2}, seen)
}

func TestRetryPolicy_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := DefaultRetryPolicy(3, time.Hour)

	attempts, err := p.Do(ctx, func(int) error {
		return &DeliveryError{StatusCode: http.StatusBadGateway}
	}, nil)

	assert.Equal(t, 1, attempts)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRetryPolicy_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	_, err := RetryPolicy{}.Do(context.Background(), func(int) error {
		calls++
		return nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDeliveryError_Retryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{0, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusForbidden, false},
		{http.StatusNotFound, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, (&DeliveryError{StatusCode: tt.status}).Retryable(), "status %d", tt.status)
	}
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t,
		"https://discord.com/api/webhooks/123/***",
		RedactURL("https://discord.com/api/webhooks/123/secret-token?wait=true"))
	assert.Equal(t, "[redacted]", RedactURL("not a url"))
}

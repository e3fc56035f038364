package notifications

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DeliveryError is a failed webhook POST. StatusCode is zero when no
// response was received (transport error or timeout).
type DeliveryError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration // from a 429 Retry-After header
	Err        error
}

// Retryable reports whether the failure may succeed on a later attempt:
// rate limits, server errors, timeouts and transport failures.
func (e *DeliveryError) Retryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func (e *DeliveryError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("webhook delivery failed: %v", e.Err)
	}
	if e.StatusCode == http.StatusTooManyRequests {
		return fmt.Sprintf("webhook rate limited (429): %s", e.Body)
	}
	return fmt.Sprintf("webhook returned %d: %s", e.StatusCode, e.Body)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// IsRetryable is the default retry predicate.
func IsRetryable(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Retryable()
	}
	return false
}

// transportError strips the request URL from an http.Client error so the
// webhook token never reaches logs.
func transportError(err error) *DeliveryError {
	var ue *url.Error
	if errors.As(err, &ue) {
		kind := "request"
		if ue.Timeout() {
			kind = "timeout"
		}
		return &DeliveryError{Err: fmt.Errorf("%s %s: %w", ue.Op, kind, ue.Err)}
	}
	return &DeliveryError{Err: err}
}

// RedactURL keeps scheme, host and all but the last path segment.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "[redacted]"
	}
	path := u.Path
	for i := len(path) - 1; i > 0; i-- {
		if path[i] == '/' {
			path = path[:i] + "/***"
			break
		}
	}
	return u.Scheme + "://" + u.Host + path
}

package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
)

// IsRateLimit reports whether an error is a quota/rate-limit response.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "ResourceExhausted") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

// IsTransient reports whether an error is worth retrying: server-side
// unavailability or a deadline expiry on a single call.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code >= 500 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "ServiceUnavailable") ||
		strings.Contains(msg, "UNAVAILABLE") ||
		strings.Contains(msg, "DeadlineExceeded") ||
		strings.Contains(msg, "DEADLINE_EXCEEDED")
}

// BackoffDelay computes the wait before retry attempt+1: base doubled
// per attempt, doubled again for rate limits, capped.
func BackoffDelay(attempt int, base, cap time.Duration, rateLimited bool) time.Duration {
	if base <= 0 {
		base = DefaultRetryBase
	}
	if cap <= 0 {
		cap = DefaultRetryCap
	}
	delay := base << uint(attempt)
	if rateLimited {
		delay *= 2
	}
	if delay > cap {
		delay = cap
	}
	return delay
}

package summarizer

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Common errors
var (
	// ErrServiceFailed marks a unit of work whose retries were exhausted
	// or whose response was not retryable. It is fatal for that unit
	// only; callers skip the unit and continue.
	ErrServiceFailed = errors.New("summarization service failed")

	// ErrEmptyResponse is returned when the service answers without any
	// usable summary text.
	ErrEmptyResponse = errors.New("service returned no summary text")
)

// ServiceError is a structured error from the external service. Transient
// errors (rate limits, server-side failures, network hiccups) are retried;
// anything else fails the unit immediately.
type ServiceError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration // optional server hint, 429 responses only
	Err        error         // underlying transport error, if any
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("service call: %v", e.Err)
	}
	return fmt.Sprintf("service error %d: %s", e.StatusCode, e.Body)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// RateLimited reports whether the service signaled a rate limit.
func (e *ServiceError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Transient reports whether the failure is worth retrying.
func (e *ServiceError) Transient() bool {
	if e.Err != nil {
		// Transport-level failures are treated as network hiccups.
		return true
	}
	return e.RateLimited() || e.StatusCode >= 500
}

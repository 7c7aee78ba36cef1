package summarizer

import (
	"errors"
	"time"
)

// Retry configuration defaults. Backoff starts at BaseDelay and doubles
// after every failed attempt; a server-provided Retry-After hint overrides
// the computed delay for that attempt.
const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 1 * time.Second
	BackoffMultiplier  = 2
)

// Policy decides, given an attempt number and the error it produced, how
// long to wait before the next attempt. It is a pure decision function; the
// caller performs the actual sleep.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultPolicy returns the retry policy used against the real service.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
	}
}

// NextDelay returns the wait before the attempt following attempt (1-based)
// and whether another attempt is allowed at all. Rate-limit errors carrying
// a server Retry-After hint override the exponential value.
func (p Policy) NextDelay(attempt int, err error) (time.Duration, bool) {
	if attempt >= p.MaxAttempts {
		return 0, false
	}

	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= BackoffMultiplier
	}

	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.RateLimited() && svcErr.RetryAfter > 0 {
		delay = svcErr.RetryAfter
	}

	return delay, true
}

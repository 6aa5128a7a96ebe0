package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"
)

// RetryPolicy bounds retries of transient request failures. The wait before
// attempt n+1 is Backoff * n.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy waits 10s, 20s, 30s and 40s between five attempts.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, Backoff: 10 * time.Second}

// Wait returns the delay after the given failed attempt (1-based).
func (p RetryPolicy) Wait(attempt int) time.Duration {
	return p.Backoff * time.Duration(attempt)
}

// StatusError is a non-200 HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Body)
}

// IsTransient reports whether a request error is worth retrying: timeouts,
// reset or refused connections, truncated bodies and 429/502/503/504.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusTooManyRequests, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}

// Do runs fn until it succeeds, fails permanently, or the policy is used up.
// Exhaustion returns an error wrapping both ErrRetriesExhausted and the last
// failure.
func (p RetryPolicy) Do(ctx context.Context, name string, fn func() error) error {
	limit := p.MaxAttempts
	if limit < 1 {
		limit = 1
	}
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if attempt >= limit {
			return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
		}

		wait := p.Wait(attempt)
		LogRetry(name, attempt, wait, err)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

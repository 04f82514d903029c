package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/desertthunder/spotback/internal/shared"
)

const (
	defaultAttempts = 3
	defaultDelay    = 500 * time.Millisecond
	maxDelay        = 10 * time.Second
)

// RetryPolicy bounds how often a failed page fetch is repeated.
//
// The delay doubles after every failed attempt. It does not look at the response,
// so a throttled request is treated like any other transient failure.
type RetryPolicy struct {
	Attempts int           // Total attempts including the first; 1 disables retries
	Delay    time.Duration // Wait before the second attempt
}

// NoRetry propagates the first failure unchanged.
var NoRetry = RetryPolicy{Attempts: 1}

// DefaultRetryPolicy is used when a [RetryPolicy] is left zero.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: defaultAttempts, Delay: defaultDelay}
}

func (p RetryPolicy) normalize() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = defaultAttempts
	}
	if p.Delay <= 0 {
		p.Delay = defaultDelay
	}
	return p
}

// backoff returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.Delay << (attempt - 1)
	if d <= 0 || d > maxDelay {
		return maxDelay
	}
	return d
}

// retryable reports whether repeating the request could change the outcome.
func retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, shared.ErrTokenExpired),
		errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrPlaylistNotFound),
		errors.Is(err, shared.ErrRequestRejected),
		errors.Is(err, shared.ErrInvalidArgument):
		return false
	}
	return true
}

func retry[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	p = p.normalize()

	var zero T
	var err error
	for attempt := 1; ; attempt++ {
		var v T
		if v, err = fn(ctx); err == nil {
			return v, nil
		}
		if attempt >= p.Attempts || !retryable(err) {
			return zero, err
		}

		timer := time.NewTimer(p.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}

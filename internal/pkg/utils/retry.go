package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds retries of a failing call.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// Retryable decides whether an error is worth another attempt. nil retries nothing.
	Retryable func(error) bool
	// OnRetry is called before each sleep, e.g. for logging.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// BackOff builds the randomized exponential schedule of the policy, bounded by
// MaxRetries and stopped when ctx is done.
func (p RetryPolicy) BackOff(ctx context.Context) backoff.BackOffContext {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.BaseDelay
	eb.MaxInterval = p.MaxDelay
	eb.Multiplier = 2
	eb.MaxElapsedTime = 0
	eb.Reset()

	retries := uint64(0)
	if p.MaxRetries > 0 {
		retries = uint64(p.MaxRetries)
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, retries), ctx)
}

// Retry runs fn until it succeeds, returns a non-retryable error or exhausts
// MaxRetries; the last error is returned. When ctx is done first, ctx.Err() is returned.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	op := func() error {
		err := fn(ctx)
		if err != nil && (p.Retryable == nil || !p.Retryable(err)) {
			return backoff.Permanent(err)
		}
		return err
	}
	attempt := 0
	notify := func(err error, delay time.Duration) {
		attempt++
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
	}
	return backoff.RetryNotify(op, p.BackOff(ctx), notify)
}

// Package retry runs an operation a bounded number of times with a fixed
// delay between failed attempts.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultAttempts = 2
	DefaultDelay    = time.Second
)

// AttemptFunc is called after every attempt. err is nil on success.
type AttemptFunc func(attempt, maxAttempts int, err error)

type options struct {
	onAttempt AttemptFunc
}

type Option func(*options)

// WithOnAttempt registers a callback invoked after each attempt.
func WithOnAttempt(fn AttemptFunc) Option {
	return func(o *options) {
		o.onAttempt = fn
	}
}

// Do invokes op up to maxAttempts times, sleeping delay between failures.
// Attempts are strictly sequential. When every attempt fails the error of the
// last attempt is returned unchanged; earlier errors are discarded.
// A maxAttempts below 1 is treated as 1 and a negative delay as 0.
//
// Cancelling ctx interrupts the wait between attempts. Once ctx is done no
// further attempt is made and ctx.Err() is returned instead of the last error.
func Do[T any](ctx context.Context, maxAttempts int, delay time.Duration, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if delay < 0 {
		delay = 0
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(maxAttempts-1)),
		ctx,
	)

	attempt := 0
	result, err := backoff.RetryWithData(func() (T, error) {
		attempt++
		res, err := op(ctx)
		if o.onAttempt != nil {
			o.onAttempt(attempt, maxAttempts, err)
		}
		return res, err
	}, policy)
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

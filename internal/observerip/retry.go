package observerip

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
)

// RetryPolicy bounds every blocking exchange with the device or the transfer file.
type RetryPolicy struct {
	MaxTries  int
	RetryWait time.Duration
}

const (
	DefaultMaxTries  = 5
	DefaultRetryWait = 2 * time.Second
)

// DefaultRetryPolicy returns five attempts spaced two seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxTries: DefaultMaxTries, RetryWait: DefaultRetryWait}
}

func (r RetryPolicy) tries() int {
	if r.MaxTries < 1 {
		return 1
	}
	return r.MaxTries
}

// do runs op until it succeeds, returns a backoff.Permanent error, ctx is
// cancelled or the policy's attempts are used up, sleeping wait between
// attempts. notify sees every failed attempt, including the last one.
func (r RetryPolicy) do(ctx context.Context, wait time.Duration, op func(attempt int) error, notify func(attempt int, err error)) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := op(attempt)
		if err != nil && notify != nil {
			notify(attempt, err)
		}
		return err
	}

	// WithMaxRetries treats zero as unlimited.
	if r.tries() == 1 {
		err := operation()
		if p, ok := err.(*backoff.PermanentError); ok {
			return p.Err
		}
		return err
	}

	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(wait), uint64(r.tries()-1))
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

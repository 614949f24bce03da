package ygggo_mysqlrw

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy controls retry strategy.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Jitter      bool
	MaxElapsed  time.Duration
}

// execRetryPolicy is the engine policy: one extra attempt, no sleep, the
// reconnect in between is the recovery.
var execRetryPolicy = RetryPolicy{MaxAttempts: 2}

// retryWithPolicy retries op according to policy. classify returns error class;
// only ErrClassRetryable is retried. onRetry runs before every new attempt.
func retryWithPolicy(ctx context.Context, pol RetryPolicy, op func(attempt int) error, classify func(error) ErrorClass, onRetry func(error)) error {
	if pol.MaxAttempts <= 0 {
		pol.MaxAttempts = 1
	}
	if pol.MaxBackoff < pol.BaseBackoff {
		pol.MaxBackoff = pol.BaseBackoff
	}
	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= pol.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := op(attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if classify(err) != ErrClassRetryable {
			return err
		}
		if attempt == pol.MaxAttempts {
			break
		}
		if pol.MaxElapsed > 0 && time.Since(start) >= pol.MaxElapsed {
			break
		}
		if d := backoff(pol, attempt); d > 0 {
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		if onRetry != nil {
			onRetry(err)
		}
	}
	return lastErr
}

func backoff(pol RetryPolicy, attempt int) time.Duration {
	if pol.BaseBackoff <= 0 {
		return 0
	}
	d := pol.BaseBackoff * time.Duration(attempt)
	if d > pol.MaxBackoff {
		d = pol.MaxBackoff
	}
	if pol.Jitter {
		d = time.Duration(rand.Int63n(int64(d)))
	}
	return d
}

package retry

import (
	"context"
	"errors"
	"time"

	errs "cblcrawl/pkg/errors"
	"cblcrawl/pkg/logger"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes how transient failures are retried. MaxAttempts counts
// retries after the first try, so 0 runs the operation exactly once.
type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultRetryIf reports whether err is worth another attempt. Typed fetch
// errors are retried by type; cancellation never is.
func DefaultRetryIf(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var fetchErr *errs.Error
	if errors.As(err, &fetchErr) {
		return errs.IsRetryable(fetchErr.Type)
	}
	return false
}

// Retrier runs operations under a Policy
type Retrier struct {
	policy  Policy
	retryIf func(error) bool
	logger  logger.Logger
}

// New creates a Retrier for policy
func New(policy Policy, log logger.Logger) *Retrier {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Retrier{policy: policy, retryIf: DefaultRetryIf, logger: log}
}

func (r *Retrier) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if r.policy.InitialBackoff > 0 {
		b.InitialInterval = r.policy.InitialBackoff
	}
	if r.policy.MaxBackoff > 0 {
		b.MaxInterval = r.policy.MaxBackoff
	}
	if r.policy.Multiplier >= 1 {
		b.Multiplier = r.policy.Multiplier
	}
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.policy.MaxAttempts)), ctx)
}

// Do runs op until it succeeds, returns a non-retryable error, runs out of
// attempts or ctx is done.
func Do[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	if r == nil || r.policy.MaxAttempts <= 0 {
		return op(ctx)
	}

	attempt := 0
	wrapped := func() (T, error) {
		attempt++
		v, err := op(ctx)
		if err != nil && !r.retryIf(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	notify := func(err error, delay time.Duration) {
		r.logger.WithError(err).WarnWithFields("Retrying after transient failure", map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": r.policy.MaxAttempts,
			"delay":        delay,
			"error_type":   string(errs.TypeOf(err)),
		})
	}

	v, err := backoff.RetryNotifyWithData(wrapped, r.backOff(ctx), notify)
	if err != nil && attempt > 1 {
		r.logger.WarnWithFields("Giving up after retries", map[string]interface{}{
			"attempts": attempt,
		})
	}
	return v, err
}

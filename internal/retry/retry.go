package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/nerrad567/greenhouse-catalog/internal/infrastructure/config"
)

// ErrExhausted is returned by Do when every attempt failed. It wraps the
// error of the last attempt.
var ErrExhausted = errors.New("retry: attempts exhausted")

// Default budget used when a Policy field is not set.
const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 2 * time.Second
)

// Policy bounds a retried operation.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts int
	// Delay is the sleep between two attempts.
	Delay time.Duration
}

// FromConfig builds a Policy from the peer retry settings (delay in seconds).
func FromConfig(cfg config.RetryConfig) Policy {
	return Policy{
		MaxAttempts: cfg.MaxAttempts,
		Delay:       config.Seconds(cfg.Delay),
	}.withDefaults()
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.Delay < 0 {
		p.Delay = DefaultDelay
	}
	return p
}

// Permanent wraps err so that Do returns it immediately without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *backoff.PermanentError
	return errors.As(err, &p)
}

// Do calls op until it succeeds, returns a Permanent error, the budget runs
// out, or ctx is done. Attempts are spaced by a constant p.Delay.
//
// Returns:
//   - nil when an attempt succeeded
//   - the unwrapped error when op returned Permanent(err)
//   - an error wrapping ErrExhausted and the last attempt's error
//   - ctx.Err() wrapped when ctx ended before the budget ran out
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	p = p.withDefaults()

	attempts := 0
	operation := func() (struct{}, error) {
		attempts++
		return struct{}{}, op(ctx)
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Delay)),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
	if err == nil {
		return nil
	}

	// A permanent error on the final attempt comes back still wrapped.
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		return perm.Err
	}
	if ctx.Err() != nil && attempts < p.MaxAttempts {
		return fmt.Errorf("retry cancelled after %d attempts: %w", attempts, err)
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempts, err)
}

package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Retry defaults used for summarizer provider calls.
const (
	DefaultMaxAttempts     = 3
	DefaultInitialInterval = 300 * time.Millisecond
	DefaultMaxInterval     = 5 * time.Second
)

// RetryConfig controls [Retry].
type RetryConfig struct {
	// MaxAttempts is the total number of calls, first one included.
	// Default: [DefaultMaxAttempts].
	MaxAttempts int

	// InitialInterval is the wait before the second attempt; each further wait
	// doubles. Default: [DefaultInitialInterval].
	InitialInterval time.Duration

	// MaxInterval caps a single wait. Default: [DefaultMaxInterval].
	MaxInterval time.Duration

	// Retryable decides whether an error is worth another attempt. Errors it
	// rejects end the loop immediately. Nil retries every error.
	Retryable func(error) bool

	// OnRetry, if set, is called after a failed attempt that will be retried,
	// with the wait before the next one.
	OnRetry func(attempt int, err error, wait time.Duration)
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = DefaultInitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = DefaultMaxInterval
	}
	return c
}

// Retry calls op until it succeeds, returns a non-retryable error, the
// attempt budget is spent, or ctx is done. Waits grow exponentially without
// jitter. attempt passed to op is 1-based.
//
// The error returned is the last error produced by op (or the context error).
func Retry[T any](ctx context.Context, cfg RetryConfig, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	b := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.InitialInterval,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         cfg.MaxInterval,
	}
	b.Reset()

	attempt := 0
	operation := func() (T, error) {
		attempt++
		v, err := op(ctx, attempt)
		if err == nil {
			return v, nil
		}
		if cfg.Retryable != nil && !cfg.Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(cfg.MaxAttempts)),
	}
	if cfg.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(func(err error, wait time.Duration) {
			cfg.OnRetry(attempt, err, wait)
		}))
	}
	return backoff.Retry(ctx, operation, opts...)
}

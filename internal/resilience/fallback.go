package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] fails or has
// an open circuit breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures the per-entry circuit breaker created for each
// entry in a [FallbackGroup].
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type haltError struct{ err error }

func (h *haltError) Error() string { return h.err.Error() }
func (h *haltError) Unwrap() error { return h.err }

// Halt marks err as final for a [FallbackGroup]: the group stops walking its
// entries and returns err (unwrapped) to the caller. The entry's breaker does
// not count a halted call as a failure, since the backend did answer.
func Halt(err error) error {
	if err == nil {
		return nil
	}
	return &haltError{err: err}
}

// fallbackEntry pairs a value with its dedicated circuit breaker.
type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds a primary and zero or more fallback instances of the
// same type. Entries are tried in registration order; an entry whose breaker
// is open is skipped.
//
// Entries must be registered before the group is shared between goroutines.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a [FallbackGroup] with primary as the first entry.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends an entry tried after all previously registered ones.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   fallback,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Names returns entry names in the order they are tried.
func (fg *FallbackGroup[T]) Names() []string {
	out := make([]string, len(fg.entries))
	for i, e := range fg.entries {
		out[i] = e.name
	}
	return out
}

// Available reports an error when every entry's breaker is open.
func (fg *FallbackGroup[T]) Available() error {
	for _, e := range fg.entries {
		if e.breaker.State() != StateOpen {
			return nil
		}
	}
	return fmt.Errorf("%w: every circuit breaker is open", ErrAllFailed)
}

// ExecuteWithResult calls fn against each entry in order until one succeeds
// or returns a [Halt] error. It returns [ErrAllFailed] wrapping every entry's
// error when none succeeds. Cancellation of ctx stops the walk.
//
// This is a package-level function because Go does not support method-level
// type parameters.
func ExecuteWithResult[T any, R any](ctx context.Context, fg *FallbackGroup[T], fn func(ctx context.Context, name string, v T) (R, error)) (R, error) {
	var (
		zero R
		errs []error
	)
	for i := range fg.entries {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		entry := &fg.entries[i]

		var (
			result R
			halted error
		)
		err := entry.breaker.Execute(func() error {
			r, err := fn(ctx, entry.name, entry.value)
			var h *haltError
			if errors.As(err, &h) {
				halted = h.err
				return nil
			}
			result = r
			return err
		})
		if halted != nil {
			return zero, halted
		}
		if err == nil {
			return result, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", entry.name, err))
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider (circuit open)", "provider", entry.name)
			continue
		}
		if i < len(fg.entries)-1 {
			slog.Warn("provider failed, trying next", "provider", entry.name, "err", err)
		}
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}

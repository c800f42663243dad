package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")

func isTransient(err error) bool { return errors.Is(err, errTransient) }

func TestRetry_StopsAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	_, err := Retry(context.Background(), RetryConfig{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		Retryable:       isTransient,
	}, func(_ context.Context, attempt int) (string, error) {
		calls++
		if attempt != calls {
			t.Errorf("attempt = %d, want %d", attempt, calls)
		}
		return "", errTransient
	})
	if !errors.Is(err, errTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_PermanentErrorStopsImmediately(t *testing.T) {
	t.Parallel()

	permanent := errors.New("bad request")
	calls := 0
	_, err := Retry(context.Background(), RetryConfig{
		InitialInterval: time.Millisecond,
		Retryable:       isTransient,
	}, func(context.Context, int) (int, error) {
		calls++
		return 0, permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_SucceedsAfterTransientFailure(t *testing.T) {
	t.Parallel()

	got, err := Retry(context.Background(), RetryConfig{
		InitialInterval: time.Millisecond,
		Retryable:       isTransient,
	}, func(_ context.Context, attempt int) (string, error) {
		if attempt < 2 {
			return "", errTransient
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want ok", got)
	}
}

func TestRetry_WaitsDouble(t *testing.T) {
	t.Parallel()

	var waits []time.Duration
	_, _ = Retry(context.Background(), RetryConfig{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		OnRetry: func(_ int, _ error, wait time.Duration) {
			waits = append(waits, wait)
		},
	}, func(context.Context, int) (struct{}, error) {
		return struct{}{}, errTransient
	})

	want := []time.Duration{time.Millisecond, 2 * time.Millisecond}
	if len(waits) != len(want) {
		t.Fatalf("waits = %v, want %v", waits, want)
	}
	for i := range want {
		if waits[i] != want[i] {
			t.Errorf("wait[%d] = %v, want %v", i, waits[i], want[i])
		}
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Retry(ctx, RetryConfig{
		MaxAttempts:     3,
		InitialInterval: time.Hour,
	}, func(context.Context, int) (int, error) {
		calls++
		cancel()
		return 0, errTransient
	})
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg := RetryConfig{}.withDefaults()
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.InitialInterval != 300*time.Millisecond {
		t.Errorf("InitialInterval = %v, want 300ms", cfg.InitialInterval)
	}
}

package coordinator

import (
	"context"
	"errors"
	"testing"

	"pokerhall/internal/store/kv"
)

// flakyKV fails its first N calls to any method, then succeeds.
type flakyKV struct {
	failures int
	calls    int
}

var errFlaky = errors.New("flaky store unavailable")

func (f *flakyKV) Get(ctx context.Context, key string) ([]byte, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errFlaky
	}
	return []byte("ok"), nil
}

func (f *flakyKV) Put(ctx context.Context, key string, value []byte) error {
	f.calls++
	if f.calls <= f.failures {
		return errFlaky
	}
	return nil
}

func (f *flakyKV) Delete(ctx context.Context, key string) error {
	f.calls++
	if f.calls <= f.failures {
		return errFlaky
	}
	return nil
}

func (f *flakyKV) KeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errFlaky
	}
	return []string{"engine:ABC"}, nil
}

// TestWithTimeoutRetrySucceedsOnSecondAttempt covers spec §5/§7's "one
// retry" KV budget: a call that fails once is retried and its second
// attempt's result is what the caller sees.
func TestWithTimeoutRetrySucceedsOnSecondAttempt(t *testing.T) {
	inner := &flakyKV{failures: 1}
	wrapped := withTimeoutRetry(inner)

	data, err := wrapped.Get(context.Background(), "engine:ABC")
	if err != nil {
		t.Fatalf("expected the retried call to succeed, got: %v", err)
	}
	if string(data) != "ok" {
		t.Errorf("got %q, want %q", data, "ok")
	}
	if inner.calls != 2 {
		t.Errorf("expected exactly one retry (2 calls), got %d", inner.calls)
	}
}

// TestWithTimeoutRetryGivesUpAfterOneRetry ensures a second consecutive
// failure is surfaced, not retried indefinitely.
func TestWithTimeoutRetryGivesUpAfterOneRetry(t *testing.T) {
	inner := &flakyKV{failures: 2}
	wrapped := withTimeoutRetry(inner)

	_, err := wrapped.Get(context.Background(), "engine:ABC")
	if err == nil {
		t.Fatal("expected an error after the retry also fails")
	}
	if inner.calls != 2 {
		t.Errorf("expected exactly 2 attempts (no further retries), got %d", inner.calls)
	}
}

// TestWithTimeoutRetryDoesNotRetryNotFound ensures a definitive
// not-found result is returned as-is rather than masked by a retry.
func TestWithTimeoutRetryDoesNotRetryNotFound(t *testing.T) {
	inner := newFakeKV()
	wrapped := withTimeoutRetry(inner)

	_, err := wrapped.Get(context.Background(), "engine:MISSING")
	if err != kv.ErrNotFound {
		t.Fatalf("expected kv.ErrNotFound, got %v", err)
	}
}

package coordinator

import (
	"context"
	"time"

	"pokerhall/internal/store/kv"
)

// kvCallTimeout bounds every individual KV round trip. Exceeding it
// surfaces as Transient and the call is retried once before giving up
// (spec §5/§7: coordinator's KV budget is 2s per call, retry once).
const kvCallTimeout = 2 * time.Second

// timeoutRetryKV wraps a kvStore so every call runs under its own 2s
// deadline and is retried exactly once (a fresh 2s deadline each try)
// before the failure is handed back to the caller.
type timeoutRetryKV struct {
	inner kvStore
}

func withTimeoutRetry(inner kvStore) kvStore {
	return &timeoutRetryKV{inner: inner}
}

func (k *timeoutRetryKV) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := kvRetry(ctx, func(callCtx context.Context) error {
		var callErr error
		data, callErr = k.inner.Get(callCtx, key)
		return callErr
	})
	return data, err
}

func (k *timeoutRetryKV) Put(ctx context.Context, key string, value []byte) error {
	return kvRetry(ctx, func(callCtx context.Context) error {
		return k.inner.Put(callCtx, key, value)
	})
}

func (k *timeoutRetryKV) Delete(ctx context.Context, key string) error {
	return kvRetry(ctx, func(callCtx context.Context) error {
		return k.inner.Delete(callCtx, key)
	})
}

func (k *timeoutRetryKV) KeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := kvRetry(ctx, func(callCtx context.Context) error {
		var callErr error
		keys, callErr = k.inner.KeysWithPrefix(callCtx, prefix)
		return callErr
	})
	return keys, err
}

// kvRetry runs fn under a 2s deadline; a not-found result is definitive
// and returned immediately, anything else is retried once under a fresh
// deadline before being surfaced.
func kvRetry(ctx context.Context, fn func(callCtx context.Context) error) error {
	if err := kvCallOnce(ctx, fn); err == nil || err == kv.ErrNotFound {
		return err
	}
	return kvCallOnce(ctx, fn)
}

func kvCallOnce(ctx context.Context, fn func(callCtx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, kvCallTimeout)
	defer cancel()
	return fn(callCtx)
}

package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ericfisherdev/reviewsync/internal/domain/model"
	"github.com/ericfisherdev/reviewsync/internal/domain/port/driven"
)

// RetryPolicy bounds the retries of a remote read that failed for
// connectivity reasons with nothing cached to fall back on.
type RetryPolicy struct {
	Attempts int           // Total attempts including the first call.
	Base     time.Duration // Delay before the second attempt.
	Max      time.Duration // Cap on any single delay.
}

// DefaultRetryPolicy returns 3 attempts starting at 1s, doubling, capped at 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Base: time.Second, Max: 30 * time.Second}
}

// BackOff returns the delay schedule for p: Base, doubling without jitter,
// capped at Max, stopping after Attempts-1 retries or when ctx is done.
func (p RetryPolicy) BackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Base
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = p.Max
	b.MaxElapsedTime = 0
	b.Reset()

	retries := p.Attempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Fetcher applies the network-first, cache-fallback read policy. It owns the
// resource cache policy; persistence is delegated to the CacheStore.
type Fetcher struct {
	cache   driven.CacheStore
	monitor *ConnectivityMonitor
	retry   RetryPolicy
	now     func() time.Time
}

// NewFetcher creates a Fetcher backed by cache and reporting to monitor.
func NewFetcher(cache driven.CacheStore, monitor *ConnectivityMonitor, retry RetryPolicy) *Fetcher {
	return &Fetcher{
		cache:   cache,
		monitor: monitor,
		retry:   retry,
		now:     time.Now,
	}
}

// Monitor returns the connectivity monitor the fetcher reports to.
func (f *Fetcher) Monitor() *ConnectivityMonitor {
	return f.monitor
}

// Evict removes every cached version of a resource so the next read goes to
// the remote host.
func (f *Fetcher) Evict(ctx context.Context, kind model.CacheKind, resource string) error {
	n, err := f.cache.DeletePrefix(ctx, model.CachePrefix(kind, resource))
	if err != nil {
		return fmt.Errorf("evicting %s %s: %w", kind, resource, err)
	}
	slog.Debug("cache evicted", "kind", kind, "resource", resource, "entries", n)
	return nil
}

// Result is the outcome of a GetOrFetch read.
type Result[T any] struct {
	Value     T
	FromCache bool      // Served from the resource cache after a network failure.
	StoredAt  time.Time // When the value was fetched from the remote host.
}

// GetOrFetch reads a remote resource through the write-through cache.
//
// The remote call is always attempted first, even while offline, since a
// successful call is the only way recovery is detected. On success the
// monitor is marked online and the value is written under key. On a network
// failure the monitor is marked offline and the cached value for key is
// returned; with nothing cached the call is retried under f's RetryPolicy
// unless the monitor was already offline, and finally fails with
// driven.ErrNoCachedData. Any other failure is returned unchanged.
func GetOrFetch[T any](ctx context.Context, f *Fetcher, key model.CacheKey, fetch func(context.Context) (T, error)) (Result[T], error) {
	wasOnline := f.monitor.Online()

	var (
		value  T
		cached *Result[T]
	)

	operation := func() error {
		v, err := fetch(ctx)
		if err == nil {
			value = v
			return nil
		}
		if !driven.IsNetworkError(err) {
			return backoff.Permanent(err)
		}

		f.monitor.MarkOffline()

		hit, cacheErr := readCache[T](ctx, f, key)
		if cacheErr != nil {
			return backoff.Permanent(cacheErr)
		}
		if hit != nil {
			cached = hit
			return backoff.Permanent(err)
		}
		if !wasOnline {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		slog.Debug("retrying remote read", "key", key.String(), "wait", wait, "error", err)
	}

	err := backoff.RetryNotify(operation, f.retry.BackOff(ctx), notify)
	switch {
	case err == nil:
		f.monitor.MarkOnline()
		storedAt := f.now().UTC()
		f.store(ctx, key, value, storedAt)
		return Result[T]{Value: value, StoredAt: storedAt}, nil
	case cached != nil:
		slog.Warn("serving cached copy", "key", key.String(), "stored_at", cached.StoredAt, "error", err)
		return *cached, nil
	case ctx.Err() != nil:
		return Result[T]{}, err
	case driven.IsNetworkError(err):
		slog.Warn("remote read failed with no cached copy", "key", key.String(), "error", err)
		return Result[T]{}, fmt.Errorf("reading %s: %w", key.Kind, driven.ErrNoCachedData)
	default:
		return Result[T]{}, err
	}
}

func readCache[T any](ctx context.Context, f *Fetcher, key model.CacheKey) (*Result[T], error) {
	entry, err := f.cache.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading cache %s: %w", key, err)
	}
	if entry == nil {
		slog.Debug("cache miss", "key", key.String())
		return nil, nil
	}

	var value T
	if err := json.Unmarshal(entry.Payload, &value); err != nil {
		slog.Warn("discarding undecodable cache entry", "key", key.String(), "error", err)
		return nil, nil
	}

	slog.Debug("cache hit", "key", key.String(), "stored_at", entry.StoredAt)
	return &Result[T]{Value: value, FromCache: true, StoredAt: entry.StoredAt}, nil
}

// store writes a freshly fetched value. A failed write is logged rather than
// returned since the caller already holds a fresh value.
func (f *Fetcher) store(ctx context.Context, key model.CacheKey, value any, storedAt time.Time) {
	payload, err := json.Marshal(value)
	if err != nil {
		slog.Error("encoding cache entry", "key", key.String(), "error", err)
		return
	}

	if err := f.cache.Put(ctx, model.CacheEntry{Key: key, Payload: payload, StoredAt: storedAt}); err != nil {
		slog.Error("writing cache entry", "key", key.String(), "error", err)
	}
}

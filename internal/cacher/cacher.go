// Package cacher provides a generic get-or-fetch cache, backed either by
// an in-process store or Redis, used by the job queue to store results and
// guard against duplicate submissions.
package cacher

import (
	"context"
	"time"
)

// FetchFunc produces the value for a cache miss.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Cacher caches values of type T, fetching on miss and deduplicating
// concurrent fetches for the same key.
type Cacher[T any] interface {
	// GetOrFetch returns the cached value for key, or calls fetchFn on a
	// miss and stores the result under ttl. Concurrent callers for the same
	// key share one fetch.
	GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFunc[T]) (T, error)

	// Put stores value under key directly, bypassing fetch.
	Put(ctx context.Context, key string, value T, ttl time.Duration) error

	// Delete removes key, if present.
	Delete(ctx context.Context, key string) error
}

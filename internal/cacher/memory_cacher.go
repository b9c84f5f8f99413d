package cacher

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// MemoryCacher is an in-process Cacher backed by go-cache, with a
// singleflight group to collapse concurrent fetches for the same key into
// one call.
type MemoryCacher[T any] struct {
	store *cache.Cache
	group singleflight.Group
}

// NewMemoryCacher constructs a MemoryCacher with the given default
// expiration and cleanup interval (cache.NoExpiration disables both).
func NewMemoryCacher[T any](defaultExpiration, cleanupInterval time.Duration) *MemoryCacher[T] {
	return &MemoryCacher[T]{store: cache.New(defaultExpiration, cleanupInterval)}
}

func (c *MemoryCacher[T]) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFunc[T]) (T, error) {
	var zero T
	if v, found := c.store.Get(key); found {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if cached, found := c.store.Get(key); found {
			if typed, ok := cached.(T); ok {
				return typed, nil
			}
		}
		fetched, err := fetchFn(ctx)
		if err != nil {
			return zero, err
		}
		c.store.Set(key, fetched, ttl)
		return fetched, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

func (c *MemoryCacher[T]) Put(_ context.Context, key string, value T, ttl time.Duration) error {
	c.store.Set(key, value, ttl)
	return nil
}

func (c *MemoryCacher[T]) Delete(_ context.Context, key string) error {
	c.store.Delete(key)
	return nil
}

package cacher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCacher is a Cacher backed by Redis, for deployments that need the
// job result cache to survive a process restart or be shared across
// replicas. A SETNX lock collapses concurrent fetches for the same key
// across processes, mirroring what singleflight does in-process.
type RedisCacher[T any] struct {
	client *redis.Client
}

func NewRedisCacher[T any](client *redis.Client) *RedisCacher[T] {
	return &RedisCacher[T]{client: client}
}

func (c *RedisCacher[T]) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fetchFn FetchFunc[T]) (T, error) {
	var zero T
	if v, err := c.get(ctx, key); err == nil {
		return v, nil
	} else if !errors.Is(err, redis.Nil) {
		return zero, err
	}

	lockKey := key + ":lock"
	acquired, err := c.client.SetNX(ctx, lockKey, "1", 30*time.Second).Result()
	if err != nil {
		return zero, fmt.Errorf("cacher: acquire lock: %w", err)
	}
	if !acquired {
		return c.waitForValue(ctx, key, lockKey)
	}
	defer c.client.Del(context.Background(), lockKey)

	fetched, err := fetchFn(ctx)
	if err != nil {
		return zero, err
	}
	if err := c.Put(context.Background(), key, fetched, ttl); err != nil {
		return zero, err
	}
	return fetched, nil
}

func (c *RedisCacher[T]) waitForValue(ctx context.Context, key, lockKey string) (T, error) {
	var zero T
	backoff := 10 * time.Millisecond
	deadline := time.Now().Add(30 * time.Second)
	for {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}
		if v, err := c.get(ctx, key); err == nil {
			return v, nil
		}
		if exists, _ := c.client.Exists(ctx, lockKey).Result(); exists == 0 {
			return zero, errors.New("cacher: fetch in flight failed or never populated the cache")
		}
		if time.Now().After(deadline) {
			return zero, errors.New("cacher: timed out waiting for concurrent fetch")
		}
		time.Sleep(backoff)
		if backoff < 500*time.Millisecond {
			backoff *= 2
		}
	}
}

func (c *RedisCacher[T]) get(ctx context.Context, key string) (T, error) {
	var zero T
	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return zero, err
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return zero, fmt.Errorf("cacher: unmarshal %q: %w", key, err)
	}
	return v, nil
}

func (c *RedisCacher[T]) Put(ctx context.Context, key string, value T, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cacher: marshal %q: %w", key, err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

func (c *RedisCacher[T]) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

package cacher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacherGetOrFetchCacheMiss(t *testing.T) {
	c := NewMemoryCacher[string](cache.NoExpiration, time.Minute)
	ctx := context.Background()

	fetchCount := 0
	val, err := c.GetOrFetch(ctx, "job-1", time.Minute, func(context.Context) (string, error) {
		fetchCount++
		return "done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "done", val)
	assert.Equal(t, 1, fetchCount)
}

func TestMemoryCacherGetOrFetchCacheHit(t *testing.T) {
	c := NewMemoryCacher[string](cache.NoExpiration, time.Minute)
	ctx := context.Background()

	fetchCount := 0
	fetch := func(context.Context) (string, error) {
		fetchCount++
		return "done", nil
	}
	_, err := c.GetOrFetch(ctx, "job-1", time.Minute, fetch)
	require.NoError(t, err)

	val, err := c.GetOrFetch(ctx, "job-1", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, "done", val)
	assert.Equal(t, 1, fetchCount, "second call must not re-fetch")
}

func TestMemoryCacherGetOrFetchDeduplicatesConcurrentMiss(t *testing.T) {
	c := NewMemoryCacher[int](cache.NoExpiration, time.Minute)
	ctx := context.Background()

	var fetchCount int
	var mu sync.Mutex
	fetch := func(context.Context) (int, error) {
		mu.Lock()
		fetchCount++
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrFetch(ctx, "shared", time.Minute, fetch)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, 1, fetchCount)
}

func TestMemoryCacherGetOrFetchPropagatesFetchError(t *testing.T) {
	c := NewMemoryCacher[string](cache.NoExpiration, time.Minute)
	wantErr := errors.New("boom")

	_, err := c.GetOrFetch(context.Background(), "job-2", time.Minute, func(context.Context) (string, error) {
		return "", wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}

func TestMemoryCacherDelete(t *testing.T) {
	c := NewMemoryCacher[string](cache.NoExpiration, time.Minute)
	ctx := context.Background()

	fetchCount := 0
	fetch := func(context.Context) (string, error) {
		fetchCount++
		return "done", nil
	}
	_, err := c.GetOrFetch(ctx, "job-3", time.Minute, fetch)
	require.NoError(t, err)

	require.NoError(t, c.Delete(ctx, "job-3"))

	_, err = c.GetOrFetch(ctx, "job-3", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, fetchCount, "delete must force a re-fetch")
}

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string
	Count int
}

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache[payload]()
	defer c.Close()
	ctx := context.Background()

	err := c.Set(ctx, "k", payload{Name: "a", Count: 2}, time.Minute)
	require.NoError(t, err)

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, payload{Name: "a", Count: 2}, got)
}

func TestMemoryCache_Miss(t *testing.T) {
	c := NewMemoryCache[payload]()
	defer c.Close()

	_, err := c.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache[string]()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_Delete(t *testing.T) {
	c := NewMemoryCache[string]()
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	// Deleting a missing key is not an error
	assert.NoError(t, c.Delete(ctx, "k"))
}

func TestMemoryCache_Health(t *testing.T) {
	c := NewMemoryCache[string]()
	assert.NoError(t, c.Health(context.Background()))
}

func TestGetWithFetch_MissThenHit(t *testing.T) {
	c := NewMemoryCache[payload]()
	defer c.Close()
	ctx := context.Background()

	calls := 0
	fetch := func(ctx context.Context, key string) (payload, error) {
		calls++
		return payload{Name: key, Count: calls}, nil
	}

	got, err := GetWithFetch(ctx, c, "k", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, payload{Name: "k", Count: 1}, got)

	// Second call is served from cache
	got, err = GetWithFetch(ctx, c, "k", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, payload{Name: "k", Count: 1}, got)
	assert.Equal(t, 1, calls)
}

func TestGetWithFetch_FetchErrorNotCached(t *testing.T) {
	c := NewMemoryCache[payload]()
	defer c.Close()
	ctx := context.Background()

	boom := errors.New("db down")
	_, err := GetWithFetch(ctx, c, "k", time.Minute, func(ctx context.Context, key string) (payload, error) {
		return payload{}, boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

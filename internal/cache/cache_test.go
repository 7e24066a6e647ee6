package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrFetch_CachesValue(t *testing.T) {
	c := New[string, string](time.Hour)
	calls := 0
	fetch := func(ctx context.Context, k string) (string, error) {
		calls++
		return "name-" + k, nil
	}
	for i := 0; i < 3; i++ {
		v, err := c.GetOrFetch(context.Background(), "u1", fetch)
		require.NoError(t, err)
		assert.Equal(t, "name-u1", v)
	}
	assert.Equal(t, 1, calls)
}

func TestGetOrFetch_ErrorNotCached(t *testing.T) {
	c := New[string, int](0)
	fail := true
	fetch := func(ctx context.Context, k string) (int, error) {
		if fail {
			return 0, errors.New("down")
		}
		return 7, nil
	}
	_, err := c.GetOrFetch(context.Background(), "k", fetch)
	require.Error(t, err)
	assert.Zero(t, c.Len())

	fail = false
	v, err := c.GetOrFetch(context.Background(), "k", fetch)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New[string, string](time.Minute).WithClock(func() time.Time { return now })
	c.Set("a", "x")
	_, ok := c.Get("a")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestInvalidateAndPurge(t *testing.T) {
	c := New[int, string](0)
	c.Set(1, "a")
	c.Set(2, "b")
	c.Invalidate(1)
	_, ok := c.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
	c.Purge()
	assert.Zero(t, c.Len())
}

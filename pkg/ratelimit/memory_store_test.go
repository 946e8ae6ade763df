package ratelimit_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpertseller/alertkit/pkg/ratelimit"
)

var base = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *ratelimit.MemoryStore {
	t.Helper()
	store := ratelimit.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestMemoryStore_Reserve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("rejects at the cap", func(t *testing.T) {
		t.Parallel()
		store := newStore(t)
		windows := []ratelimit.Window{{Size: time.Hour, Limit: 2}}

		for i := range 2 {
			d, err := store.Reserve(ctx, "k", base.Add(time.Duration(i)*time.Minute), windows)
			require.NoError(t, err)
			assert.True(t, d.Allowed)
		}

		d, err := store.Reserve(ctx, "k", base.Add(2*time.Minute), windows)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, windows[0], d.Violated)
		assert.Equal(t, []int64{2}, d.Counts)
		assert.Equal(t, 58*time.Minute, d.RetryAfter)

		n, err := store.Count(ctx, "k", base.Add(2*time.Minute), time.Hour)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n, "rejected reservation must not be recorded")
	})

	t.Run("window slides", func(t *testing.T) {
		t.Parallel()
		store := newStore(t)
		windows := []ratelimit.Window{{Size: time.Hour, Limit: 1}}

		d, err := store.Reserve(ctx, "k", base, windows)
		require.NoError(t, err)
		require.True(t, d.Allowed)

		d, err = store.Reserve(ctx, "k", base.Add(time.Hour), windows)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "event exactly one window old is outside the window")
	})

	t.Run("first violated window is reported", func(t *testing.T) {
		t.Parallel()
		store := newStore(t)
		windows := []ratelimit.Window{
			{Size: time.Hour, Limit: 10},
			{Size: 24 * time.Hour, Limit: 50},
			{Size: 15 * time.Minute, Limit: 1},
		}

		d, err := store.Reserve(ctx, "k", base, windows)
		require.NoError(t, err)
		require.True(t, d.Allowed)

		d, err = store.Reserve(ctx, "k", base.Add(5*time.Minute), windows)
		require.NoError(t, err)
		assert.False(t, d.Allowed)
		assert.Equal(t, windows[2], d.Violated)
		assert.Equal(t, 10*time.Minute, d.RetryAfter)

		d, err = store.Reserve(ctx, "k", base.Add(16*time.Minute), windows)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("future timestamps are not counted", func(t *testing.T) {
		t.Parallel()
		store := newStore(t)
		windows := []ratelimit.Window{{Size: time.Hour, Limit: 1}}

		d, err := store.Reserve(ctx, "k", base.Add(10*time.Minute), windows)
		require.NoError(t, err)
		require.True(t, d.Allowed)

		d, err = store.Reserve(ctx, "k", base, windows)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("keys are independent", func(t *testing.T) {
		t.Parallel()
		store := newStore(t)
		windows := []ratelimit.Window{{Size: time.Hour, Limit: 1}}

		d, err := store.Reserve(ctx, "a", base, windows)
		require.NoError(t, err)
		require.True(t, d.Allowed)

		d, err = store.Reserve(ctx, "b", base, windows)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})

	t.Run("reset clears events", func(t *testing.T) {
		t.Parallel()
		store := newStore(t)
		windows := []ratelimit.Window{{Size: time.Hour, Limit: 1}}

		_, err := store.Reserve(ctx, "k", base, windows)
		require.NoError(t, err)
		require.NoError(t, store.Reset(ctx, "k"))

		d, err := store.Reserve(ctx, "k", base, windows)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	})
}

func TestMemoryStore_ConcurrentReservations(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	windows := []ratelimit.Window{{Size: time.Hour, Limit: 5}}

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := store.Reserve(context.Background(), "hot", base.Add(time.Duration(i)*time.Millisecond), windows)
			if err == nil && d.Allowed {
				allowed.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(5), allowed.Load())
}

func TestMemoryStore_CountUnknownKey(t *testing.T) {
	t.Parallel()

	n, err := newStore(t).Count(context.Background(), "missing", base, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
}

package lockcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySetIfAbsent(t *testing.T) {
	ctx := context.Background()
	cache := NewMemory()

	t.Run("first writer wins", func(t *testing.T) {
		ok, err := cache.SetIfAbsent(ctx, "k", "a", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = cache.SetIfAbsent(ctx, "k", "b", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete frees the key", func(t *testing.T) {
		require.NoError(t, cache.Delete(ctx, "k"))
		ok, err := cache.SetIfAbsent(ctx, "k", "c", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("expired key can be retaken", func(t *testing.T) {
		ok, err := cache.SetIfAbsent(ctx, "short", "a", time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)

		time.Sleep(5 * time.Millisecond)

		ok, err = cache.SetIfAbsent(ctx, "short", "b", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("exactly one concurrent winner", func(t *testing.T) {
		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := cache.SetIfAbsent(ctx, "race", "v", time.Minute)
				require.NoError(t, err)
				if ok {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}

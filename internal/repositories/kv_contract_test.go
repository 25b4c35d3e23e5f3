package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questkeep/questkeep/internal/models"
)

// runKVStoreContract exercises the behaviour every KVStore backend must share.
// advance moves the backend's notion of time forward.
func runKVStoreContract(t *testing.T, store KVStore, advance func(time.Duration)) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		_, err := store.Get(ctx, "contract:missing")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("set get overwrite", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "contract:a", "one", 0))
		got, err := store.Get(ctx, "contract:a")
		require.NoError(t, err)
		assert.Equal(t, "one", got)

		require.NoError(t, store.Set(ctx, "contract:a", "two", 0))
		got, err = store.Get(ctx, "contract:a")
		require.NoError(t, err)
		assert.Equal(t, "two", got)
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "contract:b", "x", 0))
		require.NoError(t, store.Remove(ctx, "contract:b"))

		_, err := store.Get(ctx, "contract:b")
		assert.ErrorIs(t, err, models.ErrNotFound)

		assert.NoError(t, store.Remove(ctx, "contract:b"), "removing a missing key is not an error")
	})

	t.Run("ttl expiry", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "contract:ttl", "short", time.Minute))
		require.NoError(t, store.Set(ctx, "contract:forever", "long", 0))

		advance(30 * time.Second)
		_, err := store.Get(ctx, "contract:ttl")
		require.NoError(t, err)

		advance(31 * time.Second)
		_, err = store.Get(ctx, "contract:ttl")
		assert.ErrorIs(t, err, models.ErrNotFound)

		got, err := store.Get(ctx, "contract:forever")
		require.NoError(t, err)
		assert.Equal(t, "long", got)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, store.Ping(ctx))
	})
}

package ports

import (
	"context"
	"testing"

	"github.com/flotilla-io/flotilla/pkg/fleet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCacheStoreContract runs a suite of tests verifying that a CacheStore
// implementation adheres to the interface contract.
func RunCacheStoreContract(t *testing.T, store CacheStore) {
	ctx := context.Background()

	nodes := []*fleet.Node{
		{ID: "i-0a1", State: "running", Tags: map[string]string{"cluster": "web"}},
		{ID: "i-0b2", State: "stopped", Tags: map[string]string{"cluster": "web", "name": "web2"}},
	}

	t.Run("MissOnEmptyRegion", func(t *testing.T) {
		_, ok, err := store.Get(ctx, "eu-west-1")
		require.NoError(t, err)
		assert.False(t, ok, "empty store should miss")
	})

	t.Run("PutAndGet", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "eu-west-1", nodes))

		got, ok, err := store.Get(ctx, "eu-west-1")
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, got, 2)
		assert.Equal(t, "i-0a1", got[0].ID)
		assert.Equal(t, "web", got[0].Tags["cluster"])
		assert.Equal(t, "web2", got[1].Tags["name"])
	})

	t.Run("RegionsAreIndependent", func(t *testing.T) {
		_, ok, err := store.Get(ctx, "us-east-1")
		require.NoError(t, err)
		assert.False(t, ok, "other regions should miss")
	})

	t.Run("PutReplacesWholesale", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "eu-west-1", nodes[:1]))

		got, ok, err := store.Get(ctx, "eu-west-1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Len(t, got, 1)
	})

	t.Run("SnapshotIsolation", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "eu-west-1", nodes))

		got, ok, err := store.Get(ctx, "eu-west-1")
		require.NoError(t, err)
		require.True(t, ok)

		// Scribbling on a returned node must not leak into the cache.
		got[0].Name = "scribbled"
		got[0].Tags["cluster"] = "scribbled"

		again, ok, err := store.Get(ctx, "eu-west-1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Empty(t, again[0].Name)
		assert.Equal(t, "web", again[0].Tags["cluster"])
	})

	t.Run("Drop", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "eu-west-1", nodes))
		require.NoError(t, store.Drop(ctx, "eu-west-1"))

		_, ok, err := store.Get(ctx, "eu-west-1")
		require.NoError(t, err)
		assert.False(t, ok, "dropped region should miss")

		// Dropping again is not an error.
		require.NoError(t, store.Drop(ctx, "eu-west-1"))
	})
}

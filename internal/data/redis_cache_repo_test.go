package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-moderation/internal/testutil"
)

func TestRedisCacheRepo(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	repo := NewRedisCacheRepo(client, "moderation")
	ctx := context.Background()

	t.Run("set and get with prefix", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "result:1", []byte("v"), time.Minute))

		got, err := repo.Get(ctx, "result:1")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), got)

		raw, err := client.Get(ctx, "moderation:result:1").Bytes()
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), raw)

		ttl := client.TTL(ctx, "moderation:result:1").Val()
		assert.True(t, ttl > 0 && ttl <= time.Minute)
	})

	t.Run("missing key", func(t *testing.T) {
		got, err := repo.Get(ctx, "result:missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "result:2", []byte("v"), time.Minute))
		deleted, err := repo.Delete(ctx, "result:2")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = repo.Delete(ctx, "result:2")
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("set if not exists", func(t *testing.T) {
		ok, err := repo.SetIfNotExists(ctx, "lock", []byte("a"), time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.SetIfNotExists(ctx, "lock", []byte("b"), time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty key", func(t *testing.T) {
		_, err := repo.Get(ctx, "")
		require.ErrorIs(t, err, ErrEmptyCacheKey)
	})

	require.NoError(t, repo.Health(ctx))
}

package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-iot-backend/internal/model"
)

func setupCache(t *testing.T) (*ControlCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	return NewControlCache(client, time.Minute), mr
}

func TestControlCache(t *testing.T) {
	t.Parallel()

	t.Run("miss on empty cache", func(t *testing.T) {
		c, _ := setupCache(t)
		_, ok, err := c.Get(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set then get", func(t *testing.T) {
		c, _ := setupCache(t)
		ctx := context.Background()
		updated := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

		require.NoError(t, c.Set(ctx, model.ControlState{TV: 1, UpdatedAt: updated}))

		state, ok, err := c.Get(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 1, state.TV)
		assert.True(t, updated.Equal(state.UpdatedAt))
	})

	t.Run("entries expire", func(t *testing.T) {
		c, mr := setupCache(t)
		ctx := context.Background()

		require.NoError(t, c.Set(ctx, model.ControlState{TV: 1}))
		mr.FastForward(2 * time.Minute)

		_, ok, err := c.Get(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("invalidate", func(t *testing.T) {
		c, _ := setupCache(t)
		ctx := context.Background()

		require.NoError(t, c.Set(ctx, model.ControlState{TV: 1}))
		require.NoError(t, c.Invalidate(ctx))

		_, ok, err := c.Get(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("fill only writes an absent key", func(t *testing.T) {
		c, _ := setupCache(t)
		ctx := context.Background()

		stored, err := c.Fill(ctx, model.ControlState{TV: 0})
		require.NoError(t, err)
		assert.True(t, stored)

		require.NoError(t, c.Set(ctx, model.ControlState{TV: 1}))

		stored, err = c.Fill(ctx, model.ControlState{TV: 0})
		require.NoError(t, err)
		assert.False(t, stored)

		state, ok, err := c.Get(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 1, state.TV)
	})

	t.Run("fill sets a ttl", func(t *testing.T) {
		c, mr := setupCache(t)

		_, err := c.Fill(context.Background(), model.ControlState{TV: 1})
		require.NoError(t, err)
		assert.Equal(t, time.Minute, mr.TTL(controlKey))
	})

	t.Run("corrupt entry is dropped", func(t *testing.T) {
		c, mr := setupCache(t)
		ctx := context.Background()
		require.NoError(t, mr.Set(controlKey, "{not json"))

		_, ok, err := c.Get(ctx)
		require.Error(t, err)
		assert.False(t, ok)
		assert.False(t, mr.Exists(controlKey))

		stored, err := c.Fill(ctx, model.ControlState{TV: 1})
		require.NoError(t, err)
		assert.True(t, stored)
	})

	t.Run("server down", func(t *testing.T) {
		c, mr := setupCache(t)
		mr.Close()

		_, ok, err := c.Get(context.Background())
		require.Error(t, err)
		assert.False(t, ok)
	})
}

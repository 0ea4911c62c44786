package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school/backend/internal/config"
	"school/backend/internal/domain"
)

func newTestCache(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *Client, *AvatarCache) {
	t.Helper()

	server := miniredis.RunT(t)
	client, err := New(&config.RedisConfig{Address: server.Addr()}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return server, client, NewAvatarCache(client, ttl, nil)
}

func testAvatar(studentID, id uint64) *domain.Avatar {
	return &domain.Avatar{
		ID:        id,
		FilePath:  "avatars/avatar.png",
		MediaType: "image/png",
		FileSize:  3,
		Data:      []byte{1, 2, 3},
		StudentID: studentID,
		CreatedAt: time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
	}
}

func TestAvatarCache_Operations(t *testing.T) {
	ctx := context.Background()

	t.Run("写入与读取", func(t *testing.T) {
		_, _, c := newTestCache(t, time.Minute)

		_, ok := c.Get(ctx, 1)
		assert.False(t, ok)

		want := testAvatar(1, 10)
		c.Set(ctx, want)

		got, ok := c.Get(ctx, 1)
		require.True(t, ok)
		assert.Equal(t, want, got)

		stats := c.Stats()
		assert.Equal(t, uint64(1), stats.Hits)
		assert.Equal(t, uint64(1), stats.Misses)
	})

	t.Run("覆盖旧值", func(t *testing.T) {
		_, _, c := newTestCache(t, time.Minute)

		c.Set(ctx, testAvatar(2, 20))
		c.Set(ctx, testAvatar(2, 21))

		got, ok := c.Get(ctx, 2)
		require.True(t, ok)
		assert.Equal(t, uint64(21), got.ID)
	})

	t.Run("删除", func(t *testing.T) {
		_, _, c := newTestCache(t, time.Minute)

		c.Set(ctx, testAvatar(3, 30))
		c.Delete(ctx, 3)

		_, ok := c.Get(ctx, 3)
		assert.False(t, ok)
	})

	t.Run("过期", func(t *testing.T) {
		server, _, c := newTestCache(t, time.Minute)

		c.Set(ctx, testAvatar(4, 40))
		server.FastForward(2 * time.Minute)

		_, ok := c.Get(ctx, 4)
		assert.False(t, ok)
	})

	t.Run("清空只删除头像键", func(t *testing.T) {
		server, _, c := newTestCache(t, time.Minute)

		for id := uint64(1); id <= 150; id++ {
			c.Set(ctx, testAvatar(id, id))
		}
		require.NoError(t, server.Set("other:key", "keep"))

		c.Clear(ctx)

		_, ok := c.Get(ctx, 1)
		assert.False(t, ok)
		_, ok = c.Get(ctx, 150)
		assert.False(t, ok)
		value, err := server.Get("other:key")
		require.NoError(t, err)
		assert.Equal(t, "keep", value)
	})

	t.Run("损坏数据按未命中处理", func(t *testing.T) {
		server, _, c := newTestCache(t, time.Minute)

		require.NoError(t, server.Set(avatarKey(5), "not json"))

		_, ok := c.Get(ctx, 5)
		assert.False(t, ok)
	})

	t.Run("Redis 不可用时按未命中处理", func(t *testing.T) {
		server, _, c := newTestCache(t, time.Minute)

		c.Set(ctx, testAvatar(6, 60))
		server.Close()

		assert.NotPanics(t, func() {
			c.Set(ctx, testAvatar(6, 61))
			c.Delete(ctx, 6)
		})
		_, ok := c.Get(ctx, 6)
		assert.False(t, ok)
	})
}

func TestClient_Health(t *testing.T) {
	server, client, _ := newTestCache(t, time.Minute)
	assert.NoError(t, client.Health())

	server.Close()
	assert.Error(t, client.Health())
}

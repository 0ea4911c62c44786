package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school/backend/internal/domain"
)

func newAvatar(studentID uint64, data string) *domain.Avatar {
	return &domain.Avatar{
		ID:        studentID * 10,
		StudentID: studentID,
		FilePath:  "avatars/a.png",
		MediaType: "image/png",
		FileSize:  int64(len(data)),
		Data:      []byte(data),
	}
}

func TestLocalCache(t *testing.T) {
	ctx := context.Background()

	t.Run("未命中与命中", func(t *testing.T) {
		c := NewLocalCache(10, time.Minute)

		_, ok := c.Get(ctx, 1)
		assert.False(t, ok)

		c.Set(ctx, newAvatar(1, "abc"))
		got, ok := c.Get(ctx, 1)
		require.True(t, ok)
		assert.Equal(t, []byte("abc"), got.Data)

		stats := c.Stats()
		assert.Equal(t, uint64(1), stats.Hits)
		assert.Equal(t, uint64(1), stats.Misses)
		assert.Equal(t, 1, stats.Entries)
	})

	t.Run("写入覆盖旧值", func(t *testing.T) {
		c := NewLocalCache(10, time.Minute)
		c.Set(ctx, newAvatar(1, "old"))
		c.Set(ctx, newAvatar(1, "new"))

		got, ok := c.Get(ctx, 1)
		require.True(t, ok)
		assert.Equal(t, []byte("new"), got.Data)
	})

	t.Run("返回副本", func(t *testing.T) {
		c := NewLocalCache(10, time.Minute)
		original := newAvatar(2, "xyz")
		c.Set(ctx, original)

		original.Data[0] = 'Q'
		got, _ := c.Get(ctx, 2)
		assert.Equal(t, []byte("xyz"), got.Data)

		got.Data[0] = 'Z'
		again, _ := c.Get(ctx, 2)
		assert.Equal(t, []byte("xyz"), again.Data)
	})

	t.Run("删除与清空", func(t *testing.T) {
		c := NewLocalCache(10, time.Minute)
		c.Set(ctx, newAvatar(1, "a"))
		c.Set(ctx, newAvatar(2, "b"))

		c.Delete(ctx, 1)
		_, ok := c.Get(ctx, 1)
		assert.False(t, ok)

		c.Clear(ctx)
		_, ok = c.Get(ctx, 2)
		assert.False(t, ok)
		assert.Equal(t, 0, c.Stats().Entries)
	})

	t.Run("容量淘汰", func(t *testing.T) {
		c := NewLocalCache(2, time.Minute)
		c.Set(ctx, newAvatar(1, "a"))
		c.Set(ctx, newAvatar(2, "b"))
		c.Set(ctx, newAvatar(3, "c"))

		_, ok := c.Get(ctx, 1)
		assert.False(t, ok)
		_, ok = c.Get(ctx, 3)
		assert.True(t, ok)
	})

	t.Run("过期", func(t *testing.T) {
		c := NewLocalCache(10, 20*time.Millisecond)
		c.Set(ctx, newAvatar(1, "a"))

		assert.Eventually(t, func() bool {
			_, ok := c.Get(ctx, 1)
			return !ok
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("nil 不写入", func(t *testing.T) {
		c := NewLocalCache(10, time.Minute)
		c.Set(ctx, nil)
		assert.Equal(t, 0, c.Stats().Entries)
	})

	t.Run("并发安全", func(t *testing.T) {
		c := NewLocalCache(100, time.Minute)
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := uint64(i % 10)
				c.Set(ctx, newAvatar(id, "x"))
				c.Get(ctx, id)
				if i%7 == 0 {
					c.Delete(ctx, id)
				}
			}(i)
		}
		wg.Wait()
	})
}

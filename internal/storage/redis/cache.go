package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"school/backend/internal/cache"
	"school/backend/internal/domain"
)

const avatarKeyPrefix = "avatar:student:"

// AvatarCache Redis 头像缓存实现
//
// 多实例部署时共享缓存。Redis 出错时按未命中处理并记录日志，
// 不影响主流程。
type AvatarCache struct {
	client *goredis.Client
	ttl    time.Duration
	log    *zap.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

var _ cache.AvatarCache = (*AvatarCache)(nil)

// cachedAvatar 缓存序列化结构（domain.Avatar 的 JSON 不含 Data）
type cachedAvatar struct {
	ID        uint64    `json:"id"`
	FilePath  string    `json:"filePath"`
	MediaType string    `json:"mediaType"`
	FileSize  int64     `json:"fileSize"`
	Data      []byte    `json:"data"`
	StudentID uint64    `json:"studentId"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewAvatarCache 创建 Redis 头像缓存
func NewAvatarCache(client *Client, ttl time.Duration, log *zap.Logger) *AvatarCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &AvatarCache{
		client: client.Client(),
		ttl:    ttl,
		log:    log,
	}
}

// Get 获取缓存的头像
func (c *AvatarCache) Get(ctx context.Context, studentID uint64) (*domain.Avatar, bool) {
	data, err := c.client.Get(ctx, avatarKey(studentID)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("redis avatar cache get failed", zap.Uint64("studentId", studentID), zap.Error(err))
		}
		c.misses.Add(1)
		return nil, false
	}

	avatar, err := decodeAvatar(data)
	if err != nil {
		c.log.Warn("redis avatar cache decode failed", zap.Uint64("studentId", studentID), zap.Error(err))
		c.misses.Add(1)
		return nil, false
	}

	c.hits.Add(1)
	return avatar, true
}

// Set 缓存头像
func (c *AvatarCache) Set(ctx context.Context, avatar *domain.Avatar) {
	if avatar == nil {
		return
	}
	data, err := encodeAvatar(avatar)
	if err != nil {
		c.log.Warn("redis avatar cache encode failed", zap.Error(err))
		c.Delete(ctx, avatar.StudentID)
		return
	}
	if err := c.client.Set(ctx, avatarKey(avatar.StudentID), data, c.ttl).Err(); err != nil {
		c.log.Warn("redis avatar cache set failed", zap.Uint64("studentId", avatar.StudentID), zap.Error(err))
		// 写入失败时尽量移除旧值，避免继续命中过期头像
		c.Delete(ctx, avatar.StudentID)
	}
}

// Delete 删除缓存的头像
func (c *AvatarCache) Delete(ctx context.Context, studentID uint64) {
	if err := c.client.Del(ctx, avatarKey(studentID)).Err(); err != nil {
		c.log.Warn("redis avatar cache delete failed", zap.Uint64("studentId", studentID), zap.Error(err))
	}
}

// Clear 删除所有头像缓存键（SCAN 遍历，不影响其他键）
func (c *AvatarCache) Clear(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, avatarKeyPrefix+"*", 100).Iterator()
	keys := make([]string, 0, 100)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == 100 {
			c.client.Del(ctx, keys...)
			keys = keys[:0]
		}
	}
	if len(keys) > 0 {
		c.client.Del(ctx, keys...)
	}
	if err := iter.Err(); err != nil {
		c.log.Warn("redis avatar cache clear failed", zap.Error(err))
	}
}

// Stats 返回本实例的命中统计（Entries 不统计）
func (c *AvatarCache) Stats() cache.Stats {
	return cache.Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

func avatarKey(studentID uint64) string {
	return fmt.Sprintf("%s%d", avatarKeyPrefix, studentID)
}

func encodeAvatar(a *domain.Avatar) ([]byte, error) {
	return json.Marshal(cachedAvatar{
		ID:        a.ID,
		FilePath:  a.FilePath,
		MediaType: a.MediaType,
		FileSize:  a.FileSize,
		Data:      a.Data,
		StudentID: a.StudentID,
		CreatedAt: a.CreatedAt,
	})
}

func decodeAvatar(data []byte) (*domain.Avatar, error) {
	var c cachedAvatar
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &domain.Avatar{
		ID:        c.ID,
		FilePath:  c.FilePath,
		MediaType: c.MediaType,
		FileSize:  c.FileSize,
		Data:      c.Data,
		StudentID: c.StudentID,
		CreatedAt: c.CreatedAt,
	}, nil
}

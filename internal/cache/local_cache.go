package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"school/backend/internal/domain"
)

// AvatarCache 头像读缓存（按学生 ID 索引）
//
// 上传成功后写入新记录，删除学生时失效；实现需保证并发安全。
type AvatarCache interface {
	Get(ctx context.Context, studentID uint64) (*domain.Avatar, bool)
	Set(ctx context.Context, avatar *domain.Avatar)
	Delete(ctx context.Context, studentID uint64)
	Clear(ctx context.Context)
	Stats() Stats
}

// Stats 缓存命中统计
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Entries int    `json:"entries"`
}

// LocalCache 本地内存缓存（L1 缓存）
//
// 特点：
// - 基于 golang-lru 的 expirable LRU
// - 支持 TTL 过期
// - 容量限制，超出时淘汰最久未使用的条目
// - 存取时深拷贝，调用方修改不会污染缓存
type LocalCache struct {
	lru    *expirable.LRU[uint64, *domain.Avatar]
	hits   atomic.Uint64
	misses atomic.Uint64
}

var _ AvatarCache = (*LocalCache)(nil)

// NewLocalCache 创建本地缓存
//
// 参数:
//   - maxSize: 最大缓存条目数
//   - ttl: 过期时间，0 表示不过期
func NewLocalCache(maxSize int, ttl time.Duration) *LocalCache {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &LocalCache{
		lru: expirable.NewLRU[uint64, *domain.Avatar](maxSize, nil, ttl),
	}
}

// Get 获取缓存值
func (c *LocalCache) Get(_ context.Context, studentID uint64) (*domain.Avatar, bool) {
	avatar, ok := c.lru.Get(studentID)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return avatar.Clone(), true
}

// Set 设置缓存值
func (c *LocalCache) Set(_ context.Context, avatar *domain.Avatar) {
	if avatar == nil {
		return
	}
	c.lru.Add(avatar.StudentID, avatar.Clone())
}

// Delete 删除缓存值
func (c *LocalCache) Delete(_ context.Context, studentID uint64) {
	c.lru.Remove(studentID)
}

// Clear 清空所有缓存
func (c *LocalCache) Clear(_ context.Context) {
	c.lru.Purge()
}

// Stats 返回命中统计
func (c *LocalCache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.lru.Len(),
	}
}

package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"school/backend/internal/monitoring"
)

const limiterIdleTTL = 5 * time.Minute

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter 按客户端 IP 的令牌桶限流器
type IPRateLimiter struct {
	limit rate.Limit
	burst int

	mu          sync.Mutex
	entries     map[string]*ipLimiter
	lastCleanup time.Time
	now         func() time.Time
}

// NewIPRateLimiter 创建限流器
//
// 参数:
//   - rps: 每秒补充的令牌数，<= 0 表示不限流
//   - burst: 桶容量，<= 0 时取 1
func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &IPRateLimiter{
		limit:       limit,
		burst:       burst,
		entries:     make(map[string]*ipLimiter),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// Allow 消耗 key 对应桶中的一个令牌
func (l *IPRateLimiter) Allow(key string) bool {
	if l.limit == rate.Inf {
		return true
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastCleanup) >= limiterIdleTTL {
		for k, entry := range l.entries {
			if now.Sub(entry.lastSeen) > limiterIdleTTL {
				delete(l.entries, k)
			}
		}
		l.lastCleanup = now
	}

	entry, ok := l.entries[key]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Middleware 返回 gin 限流中间件，超限返回 429
//
// metrics 可为 nil。
func (l *IPRateLimiter) Middleware(metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.Allow(c.ClientIP()) {
			c.Next()
			return
		}

		if metrics != nil {
			metrics.RecordRateLimitBlock("ip")
		}
		c.Header("Retry-After", strconv.Itoa(1))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"code": http.StatusTooManyRequests,
			"msg":  "请求过于频繁，请稍后重试",
		})
	}
}

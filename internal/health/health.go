package health

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

const (
	checkTimeout      = 3 * time.Second
	maxGoroutineCount = 10000
	statusOK          = "OK"
)

// HealthChecker 健康检查器
//
// 存活检查只关注进程本身；就绪检查覆盖数据库、文件存储与缓存等依赖。
type HealthChecker struct {
	health healthcheck.Handler
	logger *zap.Logger

	mu     sync.RWMutex
	checks map[string]healthcheck.Check // 就绪检查，用于汇总报告
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(logger *zap.Logger) *HealthChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		logger: logger,
		checks: make(map[string]healthcheck.Check),
	}

	hc.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutineCount))
	return hc
}

// AddReadinessCheck 添加就绪检查，超过 3 秒视为失败
func (hc *HealthChecker) AddReadinessCheck(name string, check func() error) {
	wrapped := healthcheck.Timeout(healthcheck.Check(check), checkTimeout)

	hc.mu.Lock()
	hc.checks[name] = wrapped
	hc.mu.Unlock()

	hc.health.AddReadinessCheck(name, wrapped)
}

// LiveHandler 存活检查处理器
func (hc *HealthChecker) LiveHandler() http.HandlerFunc {
	return hc.health.LiveEndpoint
}

// ReadyHandler 就绪检查处理器
func (hc *HealthChecker) ReadyHandler() http.HandlerFunc {
	return hc.health.ReadyEndpoint
}

// CheckHealth 执行所有就绪检查，返回各项结果与整体是否健康
func (hc *HealthChecker) CheckHealth() (map[string]string, bool) {
	hc.mu.RLock()
	names := make([]string, 0, len(hc.checks))
	for name := range hc.checks {
		names = append(names, name)
	}
	hc.mu.RUnlock()
	sort.Strings(names)

	results := make(map[string]string, len(names)+1)
	healthy := true
	for _, name := range names {
		hc.mu.RLock()
		check := hc.checks[name]
		hc.mu.RUnlock()

		if err := check(); err != nil {
			healthy = false
			results[name] = fmt.Sprintf("ERROR: %v", err)
			hc.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			continue
		}
		results[name] = statusOK
	}
	results["timestamp"] = time.Now().Format(time.RFC3339)

	return results, healthy
}

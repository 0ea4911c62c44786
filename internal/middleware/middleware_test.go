package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school/backend/internal/monitoring"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestBodySizeLimit(t *testing.T) {
	router := gin.New()
	router.POST("/upload", BodySizeLimit(16), func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if IsBodyTooLarge(err) {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusOK)
	})

	t.Run("声明长度超限", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(make([]byte, 32)))
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Contains(t, rec.Body.String(), `"code":413`)
	})

	t.Run("未声明长度读取超限", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/upload", io.NopCloser(bytes.NewReader(make([]byte, 32))))
		req.ContentLength = -1
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("未超限", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(make([]byte, 8)))
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "16", rec.Header().Get("X-Max-Body-Size"))
	})
}

func TestBodySizeLimitFunc(t *testing.T) {
	router := gin.New()
	reject := func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "msg": "too big"})
	}
	handled := false
	router.POST("/upload", BodySizeLimitFunc(16, reject), func(c *gin.Context) {
		handled = true
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewReader(make([]byte, 32)))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "too big")
	assert.False(t, handled)
}

func TestIPRateLimiter(t *testing.T) {
	t.Run("超出桶容量后拒绝", func(t *testing.T) {
		limiter := NewIPRateLimiter(1, 2)
		now := time.Now()
		limiter.now = func() time.Time { return now }

		assert.True(t, limiter.Allow("10.0.0.1"))
		assert.True(t, limiter.Allow("10.0.0.1"))
		assert.False(t, limiter.Allow("10.0.0.1"))

		// 不同 IP 互不影响
		assert.True(t, limiter.Allow("10.0.0.2"))

		// 一秒后补充一个令牌
		now = now.Add(time.Second)
		assert.True(t, limiter.Allow("10.0.0.1"))
	})

	t.Run("关闭限流", func(t *testing.T) {
		limiter := NewIPRateLimiter(0, 0)
		for i := 0; i < 100; i++ {
			require.True(t, limiter.Allow("10.0.0.1"))
		}
	})

	t.Run("中间件返回 429", func(t *testing.T) {
		metrics := monitoring.NewMetrics()
		router := gin.New()
		router.GET("/limited", NewIPRateLimiter(0.001, 1).Middleware(metrics), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})

		codes := make([]int, 0, 2)
		for i := 0; i < 2; i++ {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/limited", nil))
			codes = append(codes, rec.Code)
		}
		assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
		assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RateLimitBlocks.WithLabelValues("ip")))
	})
}

func TestRecovery(t *testing.T) {
	metrics := monitoring.NewMetrics()
	mm := NewMonitoringMiddleware(metrics, nil)

	router := gin.New()
	router.Use(RecoveryHandler(nil), mm.HTTPMetrics(), mm.PanicRecovery())
	router.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":500`)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PanicsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/panic", "500")))
}

package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 上传方式
const (
	ModeSync  = "sync"
	ModeAsync = "async"
)

// Metrics 监控指标
//
// 每个实例使用独立的 Registry，测试中可以重复创建。
type Metrics struct {
	registry *prometheus.Registry

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 头像指标
	AvatarUploadsTotal   *prometheus.CounterVec
	AvatarUploadDuration *prometheus.HistogramVec
	AvatarUploadSize     prometheus.Histogram
	AvatarOrphanFiles    prometheus.Counter
	AvatarFilesRemoved   prometheus.Counter
	AvatarStoredFiles    prometheus.Gauge
	AvatarStoredBytes    prometheus.Gauge

	// 缓存指标
	CacheRequestsTotal *prometheus.CounterVec

	// 异步队列指标
	AsyncQueueDepth prometheus.Gauge
	AsyncInFlight   prometheus.Gauge

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter

	// 限流指标
	RateLimitBlocks *prometheus.CounterVec
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "school_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "school_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		AvatarUploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "school_avatar_uploads_total",
				Help: "Total number of avatar uploads by mode and result",
			},
			[]string{"mode", "result"},
		),

		AvatarUploadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "school_avatar_upload_duration_seconds",
				Help:    "Avatar upload duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),

		AvatarUploadSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "school_avatar_upload_size_bytes",
				Help:    "Size of accepted avatar uploads in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 2, 9),
			},
		),

		AvatarOrphanFiles: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "school_avatar_orphan_files_total",
				Help: "Avatar files left on disk after a failed database write",
			},
		),

		AvatarFilesRemoved: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "school_avatar_files_removed_total",
				Help: "Avatar files removed by the orphan sweeper",
			},
		),

		AvatarStoredFiles: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "school_avatar_stored_files",
				Help: "Number of avatar files on disk at the last sweep",
			},
		),

		AvatarStoredBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "school_avatar_stored_bytes",
				Help: "Total size of avatar files on disk at the last sweep",
			},
		),

		CacheRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "school_avatar_cache_requests_total",
				Help: "Avatar cache lookups by result",
			},
			[]string{"result"},
		),

		AsyncQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "school_avatar_async_queue_depth",
				Help: "Number of queued asynchronous avatar uploads",
			},
		),

		AsyncInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "school_avatar_async_in_flight",
				Help: "Number of asynchronous avatar uploads not yet completed",
			},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "school_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "school_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		RateLimitBlocks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "school_rate_limit_blocks_total",
				Help: "Total number of rate limited requests",
			},
			[]string{"limit_type"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordUpload 记录一次头像上传结果
func (m *Metrics) RecordUpload(mode, result string, size int64, duration time.Duration) {
	m.AvatarUploadsTotal.WithLabelValues(mode, result).Inc()
	m.AvatarUploadDuration.WithLabelValues(mode).Observe(duration.Seconds())
	if result == "success" {
		m.AvatarUploadSize.Observe(float64(size))
	}
}

// RecordOrphanFile 记录数据库写入失败后遗留的文件
func (m *Metrics) RecordOrphanFile() {
	m.AvatarOrphanFiles.Inc()
}

// RecordSweep 记录一次孤儿文件清理
func (m *Metrics) RecordSweep(files int, bytes int64, removed int) {
	m.AvatarStoredFiles.Set(float64(files))
	m.AvatarStoredBytes.Set(float64(bytes))
	m.AvatarFilesRemoved.Add(float64(removed))
}

// RecordCacheHit 记录缓存命中
func (m *Metrics) RecordCacheHit() {
	m.CacheRequestsTotal.WithLabelValues("hit").Inc()
}

// RecordCacheMiss 记录缓存未命中
func (m *Metrics) RecordCacheMiss() {
	m.CacheRequestsTotal.WithLabelValues("miss").Inc()
}

// UpdateAsyncQueue 更新异步队列状态
func (m *Metrics) UpdateAsyncQueue(depth int) {
	m.AsyncQueueDepth.Set(float64(depth))
}

// IncAsyncInFlight 异步任务开始
func (m *Metrics) IncAsyncInFlight() {
	m.AsyncInFlight.Inc()
}

// DecAsyncInFlight 异步任务结束
func (m *Metrics) DecAsyncInFlight() {
	m.AsyncInFlight.Dec()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流拦截
func (m *Metrics) RecordRateLimitBlock(limitType string) {
	m.RateLimitBlocks.WithLabelValues(limitType).Inc()
}

// Registry 返回指标注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler 返回 Prometheus 抓取处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

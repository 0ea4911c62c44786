package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	// 独立注册表，重复创建不会冲突
	m := NewMetrics()
	_ = NewMetrics()

	m.RecordUpload(ModeSync, "success", 2048, 10*time.Millisecond)
	m.RecordUpload(ModeAsync, "validation", 0, time.Millisecond)
	m.RecordCacheHit()
	m.RecordCacheMiss()
	m.RecordCacheMiss()
	m.RecordOrphanFile()
	m.RecordSweep(3, 300, 1)
	m.UpdateAsyncQueue(5)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AvatarUploadsTotal.WithLabelValues(ModeSync, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AvatarUploadsTotal.WithLabelValues(ModeAsync, "validation")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheRequestsTotal.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AvatarOrphanFiles))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.AvatarStoredFiles))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.AsyncQueueDepth))

	rec := httptest.NewRecorder()
	m.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "school_avatar_uploads_total")
}

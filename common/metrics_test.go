package common

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMetricsMiddleware_WritesToGivenDB(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := TestDBInit()
	require.NoError(t, AutoMigrateJobs(db))

	// A second database opened later must not receive the metrics.
	other := TestDBInit()
	require.NoError(t, AutoMigrateJobs(other))

	r := gin.New()
	r.Use(MetricsMiddleware(db, zaptest.NewLogger(t)))
	r.GET("/exports/:collection", func(c *gin.Context) {
		c.Set("rows_processed", 3)
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/exports/events", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	require.Eventually(t, func() bool {
		var count int64
		db.Model(&ApiMetric{}).Count(&count)
		return count == 1
	}, time.Second, 10*time.Millisecond)

	var metric ApiMetric
	require.NoError(t, db.First(&metric).Error)
	assert.Equal(t, "/exports/:collection", metric.Endpoint)
	assert.Equal(t, 3, metric.RowsProcessed)

	var otherCount int64
	require.NoError(t, other.Model(&ApiMetric{}).Count(&otherCount).Error)
	assert.Zero(t, otherCount)
}

func TestMetrics_Observe(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveImport("events", 2, 1)
	m.ObserveExport("events")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RowsImported.WithLabelValues("events")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowsSkipped.WithLabelValues("events")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Exports.WithLabelValues("events")))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() { nilMetrics.ObserveImport("events", 1, 1) })
}

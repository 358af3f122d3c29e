package common

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Metrics holds the Prometheus collectors for the import/export pipeline.
type Metrics struct {
	RowsImported *prometheus.CounterVec
	RowsSkipped  *prometheus.CounterVec
	Exports      *prometheus.CounterVec
}

// NewMetrics registers collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RowsImported: f.NewCounterVec(prometheus.CounterOpts{
			Name: "records_rows_imported_total",
			Help: "Rows accepted and persisted by CSV imports",
		}, []string{"collection"}),
		RowsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "records_rows_skipped_total",
			Help: "Rows rejected, deduplicated or failed during CSV imports",
		}, []string{"collection"}),
		Exports: f.NewCounterVec(prometheus.CounterOpts{
			Name: "records_exports_total",
			Help: "CSV exports served",
		}, []string{"collection"}),
	}
}

// ObserveImport adds one import's counts. Safe on a nil receiver.
func (m *Metrics) ObserveImport(collection string, imported, skipped int) {
	if m == nil {
		return
	}
	m.RowsImported.WithLabelValues(collection).Add(float64(imported))
	m.RowsSkipped.WithLabelValues(collection).Add(float64(skipped))
}

// ObserveExport counts one served export. Safe on a nil receiver.
func (m *Metrics) ObserveExport(collection string) {
	if m == nil {
		return
	}
	m.Exports.WithLabelValues(collection).Inc()
}

// MetricsMiddleware tracks API performance metrics and stores one ApiMetric
// per request in db.
func MetricsMiddleware(db *gorm.DB, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Generate request ID for tracing
		requestID := uuid.New().String()
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		startTime := time.Now()

		c.Next()

		durationMs := int(time.Since(startTime).Milliseconds())

		// Get rows processed (if set by handler)
		rowsProcessed := 0
		if rows, exists := c.Get("rows_processed"); exists {
			if r, ok := rows.(int); ok {
				rowsProcessed = r
			}
		}

		errors := ""
		if len(c.Errors) > 0 {
			errors = c.Errors.String()
		}

		metric := ApiMetric{
			RequestID:     requestID,
			Endpoint:      c.FullPath(),
			Method:        c.Request.Method,
			StatusCode:    c.Writer.Status(),
			DurationMs:    durationMs,
			RowsProcessed: rowsProcessed,
			Errors:        errors,
			Timestamp:     startTime,
		}

		log.Debug("request",
			zap.String("request_id", requestID),
			zap.String("method", metric.Method),
			zap.String("endpoint", metric.Endpoint),
			zap.Int("status", metric.StatusCode),
			zap.Int("duration_ms", durationMs),
		)

		// Save metric asynchronously
		go func() {
			if err := db.Create(&metric).Error; err != nil {
				log.Warn("save api metric", zap.Error(err))
			}
		}()
	}
}

package middlewares

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_service_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cart_service_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	fetchOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_service_fetch_operations_total",
			Help: "Total number of upstream cart fetches",
		},
		[]string{"policy", "status"},
	)

	snapshotServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_service_snapshot_served_total",
			Help: "Static snapshot lookups by freshness",
		},
		[]string{"freshness"},
	)

	viewOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_service_view_operations_total",
			Help: "Total number of cart view operations",
		},
		[]string{"operation", "status"},
	)
)

// PrometheusMiddleware 收集 Prometheus 指标
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Inc()

		httpRequestDuration.WithLabelValues(
			c.Request.Method,
			path,
			status,
		).Observe(duration)
	}
}

// RecordViewOperation 记录视图操作指标
func RecordViewOperation(operation string, success bool) {
	viewOperations.WithLabelValues(operation, statusLabel(success)).Inc()
}

// SourceMetrics 数据源指标，实现 datasource.Metrics
type SourceMetrics struct{}

func (SourceMetrics) RecordFetch(policy string, success bool) {
	fetchOperations.WithLabelValues(policy, statusLabel(success)).Inc()
}

func (SourceMetrics) RecordSnapshotServed(freshness string) {
	snapshotServed.WithLabelValues(freshness).Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// Package metrics 提供 Prometheus 指标采集功能
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flashcal"

// 镜像写入结果
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

var (
	// MirrorWritesTotal 镜像写入次数
	// Labels: tier (local/external), result (success/error/skipped)
	MirrorWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "writes_total",
			Help:      "Total number of mirror write attempts by tier and result",
		},
		[]string{"tier", "result"},
	)

	// MirrorWriteDuration 镜像写入耗时（秒）
	MirrorWriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "write_duration_seconds",
			Help:      "Mirror write duration in seconds by tier",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5, 10},
		},
		[]string{"tier"},
	)

	// StoreOperationsTotal 主存储操作次数
	StoreOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of primary store operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	// HTTPRequestsTotal HTTP 请求指标
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)
)

// RecordMirrorWrite 记录一次镜像写入
func RecordMirrorWrite(tier, result string, elapsed time.Duration) {
	MirrorWritesTotal.WithLabelValues(tier, result).Inc()
	if result != ResultSkipped {
		MirrorWriteDuration.WithLabelValues(tier).Observe(elapsed.Seconds())
	}
}

// RecordStoreOperation 记录主存储操作结果
func RecordStoreOperation(operation string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	StoreOperationsTotal.WithLabelValues(operation, result).Inc()
}

// RecordHTTPRequest 记录HTTP请求
func RecordHTTPRequest(method, path, status string, elapsed time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

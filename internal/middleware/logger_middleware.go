// Package middleware 提供HTTP中间件：访问日志、请求ID与指标
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/flashcal/internal/logger"
	"github.com/weiwangfds/flashcal/internal/metrics"
	"github.com/weiwangfds/flashcal/internal/response"
)

// LoggerMiddleware 日志中间件
type LoggerMiddleware struct {
	logger    *logrus.Logger
	skipPaths map[string]bool
}

// NewLoggerMiddleware 创建日志中间件实例，使用全局日志器
func NewLoggerMiddleware(skipPaths ...string) *LoggerMiddleware {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	return &LoggerMiddleware{
		logger:    logger.GetLogger(),
		skipPaths: skip,
	}
}

// RequestLogger 记录每个请求的访问日志和指标
func (m *LoggerMiddleware) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		// 按路由模板统计，避免 :id 产生大量标签
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, route, strconv.Itoa(status), latency)

		if m.skipPaths[path] {
			return
		}

		entry := m.logger.WithFields(logrus.Fields{
			"status":     status,
			"latency":    latency.String(),
			"client_ip":  c.ClientIP(),
			"method":     c.Request.Method,
			"path":       path,
			"raw_query":  raw,
			"request_id": c.GetString(response.RequestIDKey),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("error", c.Errors.String())
		}

		switch {
		case status >= 500:
			entry.Error("HTTP Request")
		case status >= 400:
			entry.Warn("HTTP Request")
		default:
			entry.Info("HTTP Request")
		}
	}
}

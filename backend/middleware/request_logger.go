package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/HabibSwathi/Credit-Card-Fraud-Detection-App/backend/pkg/logger"
)

// RequestLogger logs incoming requests and their responses. Frame uploads
// are logged at debug level since they arrive at video rate.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// Process request
		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		attrs := []any{
			"status", status,
			"method", c.Request.Method,
			"path", path,
			"latency_ms", latency.Milliseconds(),
			"client_ip", c.ClientIP(),
		}

		if query != "" {
			attrs = append(attrs, "query", query)
		}
		if route := c.FullPath(); route != "" && route != path {
			attrs = append(attrs, "route", route)
		}

		// The request context carries request_id and username
		log := logger.WithContext(c.Request.Context())
		switch {
		case status >= 500:
			log.Error("request completed", attrs...)
		case status >= 400:
			log.Warn("request completed", attrs...)
		case c.GetBool(quietKey):
			log.Debug("request completed", attrs...)
		default:
			log.Info("request completed", attrs...)
		}
	}
}

const quietKey = "quiet_log"

// Quiet marks successful requests of a route for debug level access logs
func Quiet() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(quietKey, true)
		c.Next()
	}
}

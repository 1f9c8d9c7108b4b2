package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AccessLog writes one structured line per request once the handlers have run.
func AccessLog(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       routeOf(c),
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"ip":         clientIP(c),
			"request_id": c.GetString("request_id"),
		})
		if u := Username(c); u != "" {
			entry = entry.WithField("username", u)
		}
		switch {
		case status >= 500:
			entry.Error("request failed")
		case status >= 400:
			entry.Warn("request rejected")
		default:
			entry.Info("request handled")
		}
	}
}

package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smartsupply/agent/internal/monitoring"
)

// Metrics records request latency metrics for each HTTP request.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		status := strconv.Itoa(c.Writer.Status())
		monitoring.ObserveAPILatency(c.Request.Method, path, status, time.Since(start))
	}
}

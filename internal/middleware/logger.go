package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smartsupply/agent/pkg/logger"
)

// RequestIDHeader carries the per request identifier.
const RequestIDHeader = "X-Request-ID"

// CtxRequestIDKey stores the request identifier in the gin context.
const CtxRequestIDKey = "requestID"

// Logger writes a concise structured access log for each request. Probe and
// scrape traffic is logged at debug level.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		requestID := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(CtxRequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		log := logger.WithModule("http")
		if isQuietPath(path) {
			log.Debug("request", fields...)
			return
		}
		log.Info("request", fields...)
	}
}

func isQuietPath(path string) bool {
	return path == "/metrics" || strings.HasPrefix(path, "/health")
}

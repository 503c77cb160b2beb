package middleware

import "github.com/gin-gonic/gin"

const (
	// DefaultContentSecurityPolicy allows nothing to load from the API itself.
	DefaultContentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'"
)

// SecurityHeaders applies response headers that keep browsers from framing or
// sniffing API responses. The agent listens on plain HTTP next to the UI, so no
// HSTS header is sent.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Content-Security-Policy", DefaultContentSecurityPolicy)
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

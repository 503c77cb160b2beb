package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/smartsupply/agent/pkg/errors"
	"github.com/smartsupply/agent/pkg/response"
)

const limiterIdleTTL = 10 * time.Minute

// RateLimit returns a middleware that applies a token bucket per
// (clientIP, route). Buckets idle for longer than limiterIdleTTL are dropped.
func RateLimit(perSecond float64, burst int) gin.HandlerFunc {
	type bucket struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	var (
		mu        sync.Mutex
		buckets   = make(map[string]*bucket)
		lastSweep = time.Now()
	)

	return func(c *gin.Context) {
		if perSecond <= 0 || burst <= 0 {
			c.Next()
			return
		}

		key := c.ClientIP() + "|" + c.FullPath()
		now := time.Now()

		mu.Lock()
		if now.Sub(lastSweep) > limiterIdleTTL {
			for k, b := range buckets {
				if now.Sub(b.lastSeen) > limiterIdleTTL {
					delete(buckets, k)
				}
			}
			lastSweep = now
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
			buckets[key] = b
		}
		b.lastSeen = now
		reservation := b.limiter.ReserveN(now, 1)
		mu.Unlock()

		c.Header("X-RateLimit-Limit", strconv.Itoa(burst))

		if delay := reservation.DelayFrom(now); delay > 0 {
			reservation.CancelAt(now)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}

		c.Next()
	}
}

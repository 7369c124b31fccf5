package middleware

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"prizedraw/pkg/log"
)

// RateLimitConfig rate limiting configuration
type RateLimitConfig struct {
	// Rate requests per second per key
	Rate float64
	// Burst maximum burst size per key
	Burst int
	// KeyFunc derives the limit bucket from the request
	KeyFunc func(c *gin.Context) string
}

type keyedLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func (k *keyedLimiters) get(key string, r float64, burst int) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(r), burst)
		k.limiters[key] = l
	}
	return l
}

// RateLimitWithConfig limits requests per key using a token bucket.
func RateLimitWithConfig(config RateLimitConfig) gin.HandlerFunc {
	kl := &keyedLimiters{limiters: make(map[string]*rate.Limiter)}

	return func(c *gin.Context) {
		key := config.KeyFunc(c)
		if !kl.get(key, config.Rate, config.Burst).Allow() {
			log.WithFields(map[string]interface{}{
				"key":    key,
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Warn("Rate limit exceeded")

			c.Header("X-RateLimit-Limit", strconv.FormatFloat(config.Rate, 'f', 0, 64))
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": "too many requests",
			})
			return
		}
		c.Next()
	}
}

// IPRateLimit limits by client IP.
func IPRateLimit(rps float64, burst int) gin.HandlerFunc {
	return RateLimitWithConfig(RateLimitConfig{
		Rate:  rps,
		Burst: burst,
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	})
}

// DrawRateLimit limits the draw endpoint per authenticated user, falling
// back to the client IP before authentication ran.
func DrawRateLimit(rps float64, burst int) gin.HandlerFunc {
	return RateLimitWithConfig(RateLimitConfig{
		Rate:  rps,
		Burst: burst,
		KeyFunc: func(c *gin.Context) string {
			if id, ok := GetUserID(c); ok {
				return "user:" + strconv.FormatUint(id, 10)
			}
			return c.ClientIP()
		},
	})
}

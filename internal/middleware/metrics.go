package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"prizedraw/internal/monitor"
)

// Metrics records request counts and latencies per route. The route
// template, not the raw path, is the label so path parameters do not blow
// up cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		monitor.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		monitor.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

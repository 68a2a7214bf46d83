package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"newspaper/internal/metrics"
)

// Metrics records every request against its matched route pattern.
func Metrics(rec metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		rec.RecordRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

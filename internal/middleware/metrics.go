package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"pivoine.art/gamification/pkg/metrics"
)

// HTTPMetrics records one observation per request, labelled with the route
// template so path parameters don't explode cardinality.
func HTTPMetrics(m *metrics.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveHTTP(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

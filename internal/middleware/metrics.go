package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cohort-api/internal/service"
)

// probePaths are polled by orchestrators and scrapers and stay out of request metrics.
var probePaths = map[string]struct{}{
	"/health":  {},
	"/ready":   {},
	"/metrics": {},
}

// Metrics records latency and status per matched route. Unmatched requests
// share one label so arbitrary URLs cannot grow the series count.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		route := c.FullPath()
		if _, probe := probePaths[route]; probe {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		if route == "" {
			route = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

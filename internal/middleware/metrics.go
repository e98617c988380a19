package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grievance-api/internal/service"
)

const guestRole = "guest"

// Metrics records request counts and latency per route pattern and caller role.
// The role is read after the handler chain so routes behind Authenticate report it.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		role := guestRole
		if viewer := ViewerFrom(c); viewer.Authenticated {
			role = string(viewer.Role)
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, role, c.Writer.Status(), time.Since(start))
	}
}

package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/messdesk/mess_backend/config"
)

// ReadinessGate answers 503 until the database is connected. /healthz and
// /metrics stay reachable so probes work while dependencies come up.
func ReadinessGate() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.URL.Path {
		case "/healthz", "/metrics":
			c.Next()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service is starting"})
			return
		}
		c.Next()
	}
}

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/agentdesk/internal/handlers"
)

func registerHealthRoutes(r *gin.Engine, health *handlers.HealthHandler) {
	for _, router := range []gin.IRouter{r, r.Group("/api")} {
		router.GET("/health", health.Summary)
		router.GET("/health/live", health.Live)
		router.GET("/health/ready", health.Ready)
	}
}

package api

import "github.com/gin-gonic/gin"

func registerSetupRoutes(public *gin.RouterGroup, deps routeDeps) {
	setup := public.Group("/setup")
	{
		setup.GET("/status", deps.setup.Status)
		setup.POST("/initialize", deps.loginLimit, deps.setup.Initialize)
	}
}

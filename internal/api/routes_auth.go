package api

import "github.com/gin-gonic/gin"

func registerAuthRoutes(public, protected *gin.RouterGroup, deps routeDeps) {
	auth := public.Group("/auth")
	{
		auth.POST("/login", deps.loginLimit, deps.auth.Login)
		auth.POST("/refresh", deps.loginLimit, deps.auth.Refresh)
	}

	me := protected.Group("/auth")
	{
		me.POST("/logout", deps.auth.Logout)
		me.GET("/me", deps.auth.Me)
		me.PATCH("/me", deps.auth.UpdateMe)
		me.POST("/password", deps.loginLimit, deps.auth.ChangePassword)
		me.GET("/sessions", deps.auth.Sessions)
	}
}

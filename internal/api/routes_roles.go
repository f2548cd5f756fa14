package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/agentdesk/internal/permissions"
)

func registerRoleRoutes(protected *gin.RouterGroup, deps routeDeps) {
	h := deps.roles

	account := protected.Group("/accounts/:accountID/roles")
	{
		account.GET("", deps.require(permissions.AgentsView), h.List)
		account.POST("", deps.require(permissions.RolesManage), h.Create)
	}

	roles := protected.Group("/roles/:id")
	roles.Use(deps.require(permissions.RolesManage))
	{
		roles.GET("", h.Get)
		roles.PUT("", h.Update)
		roles.DELETE("", h.Delete)
	}
}

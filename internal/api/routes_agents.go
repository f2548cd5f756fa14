package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/agentdesk/internal/permissions"
)

func registerAgentRoutes(protected *gin.RouterGroup, deps routeDeps) {
	h := deps.agents

	account := protected.Group("/accounts/:accountID/agents")
	{
		account.GET("", deps.require(permissions.AgentsView), h.List)
		account.POST("", deps.require(permissions.AgentsManage), h.Create)
	}

	agents := protected.Group("/agents/:id")
	{
		agents.GET("", deps.require(permissions.AgentsView), h.Get)
		agents.PATCH("", deps.require(permissions.AgentsManage), h.Update)
		agents.DELETE("", deps.require(permissions.AgentsManage), h.Delete)
		agents.PUT("/role", deps.require(permissions.RolesManage), h.UpdateRole)
		agents.POST("/deactivate", deps.require(permissions.AgentsManage), h.Deactivate)
		agents.POST("/reactivate", deps.require(permissions.AgentsManage), h.Reactivate)
		agents.POST("/password", deps.require(permissions.AgentsManage), h.SetPassword)
		agents.POST("/unlock", deps.require(permissions.AgentsManage), h.Unlock)
		agents.GET("/permissions", deps.require(permissions.AgentsView), h.Permissions)
		agents.GET("/sessions", deps.require(permissions.AgentsManage), h.Sessions)
		agents.DELETE("/sessions", deps.require(permissions.AgentsManage), h.RevokeSessions)
	}

	protected.GET("/permissions", deps.require(permissions.AgentsView), deps.perms.Catalogue)
}

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/agentdesk/internal/permissions"
)

func registerInvitationRoutes(public, protected *gin.RouterGroup, deps routeDeps) {
	h := deps.invitations

	account := protected.Group("/accounts/:accountID/invitations")
	account.Use(deps.require(permissions.AgentsInvite))
	{
		account.GET("", h.List)
		account.POST("", h.Create)
	}

	invites := public.Group("/invitations")
	{
		invites.GET("/:token", h.Validate)
		invites.POST("/:token/accept", deps.loginLimit, h.Accept)
	}
	protected.DELETE("/invitations/:id", deps.require(permissions.AgentsInvite), h.Revoke)
}

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/agentdesk/internal/permissions"
)

func registerSecurityRoutes(protected *gin.RouterGroup, deps routeDeps) {
	if deps.security == nil {
		return
	}
	protected.GET("/security/audit", deps.require(permissions.SettingsManage), deps.security.Audit)
}

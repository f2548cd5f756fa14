package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/agentdesk/internal/models"
	"github.com/charlesng35/agentdesk/internal/permissions"
	"github.com/charlesng35/agentdesk/pkg/response"
)

type PermissionHandler struct{}

func NewPermissionHandler() *PermissionHandler {
	return &PermissionHandler{}
}

type permissionView struct {
	ID          string   `json:"id"`
	Module      string   `json:"module"`
	DependsOn   []string `json:"depends_on"`
	Description string   `json:"description"`
}

// GET /api/permissions
//
// Lists the capability catalogue and the defaults of each built-in role.
func (h *PermissionHandler) Catalogue(c *gin.Context) {
	all := permissions.GetAll()
	views := make([]permissionView, 0, len(all))
	for _, perm := range all {
		deps := perm.DependsOn
		if deps == nil {
			deps = []string{}
		}
		views = append(views, permissionView{
			ID:          perm.ID,
			Module:      perm.Module,
			DependsOn:   deps,
			Description: perm.Description,
		})
	}

	roles := []models.AgentRole{
		models.AgentRoleOwner,
		models.AgentRoleAdministrator,
		models.AgentRoleAgent,
		models.AgentRoleViewer,
	}
	defaults := make(map[models.AgentRole][]string, len(roles))
	for _, role := range roles {
		defaults[role] = permissions.DefaultsFor(role)
	}

	response.Success(c, http.StatusOK, gin.H{
		"permissions":   views,
		"role_defaults": defaults,
	})
}

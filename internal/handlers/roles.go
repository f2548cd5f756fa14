package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/agentdesk/internal/models"
	"github.com/charlesng35/agentdesk/internal/services"
	"github.com/charlesng35/agentdesk/pkg/response"
)

// RoleHandler manages per-account custom roles.
type RoleHandler struct {
	roles *services.CustomRoleService
}

func NewRoleHandler(roles *services.CustomRoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

// GET /api/accounts/:accountID/roles
func (h *RoleHandler) List(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}
	accountID, ok := accountParam(c, cl)
	if !ok {
		return
	}

	roles, err := h.roles.List(requestContext(c), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, roles)
}

// POST /api/accounts/:accountID/roles
func (h *RoleHandler) Create(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}
	accountID, ok := accountParam(c, cl)
	if !ok {
		return
	}
	var req services.CustomRoleInput
	if !bindAndValidate(c, &req) {
		return
	}

	role, err := h.roles.Create(requestContext(c), accountID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, role)
}

// GET /api/roles/:id
func (h *RoleHandler) Get(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}
	role, ok := h.load(c, cl)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, role)
}

// PUT /api/roles/:id
func (h *RoleHandler) Update(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}
	var req services.CustomRoleInput
	if !bindAndValidate(c, &req) {
		return
	}
	role, ok := h.load(c, cl)
	if !ok {
		return
	}

	updated, err := h.roles.Update(requestContext(c), role.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, updated)
}

// DELETE /api/roles/:id
func (h *RoleHandler) Delete(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}
	role, ok := h.load(c, cl)
	if !ok {
		return
	}

	if err := h.roles.Delete(requestContext(c), role.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

func (h *RoleHandler) load(c *gin.Context, cl caller) (*models.CustomRole, bool) {
	role, err := h.roles.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	if role.AccountID != cl.AccountID {
		response.Error(c, services.ErrCustomRoleNotFound)
		return nil, false
	}
	return role, true
}

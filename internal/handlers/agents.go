package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/agentdesk/internal/auth"
	"github.com/charlesng35/agentdesk/internal/models"
	"github.com/charlesng35/agentdesk/internal/services"
	"github.com/charlesng35/agentdesk/pkg/response"
)

type AgentHandler struct {
	agents   *services.AgentService
	sessions *iauth.SessionService
}

func NewAgentHandler(agents *services.AgentService, sessions *iauth.SessionService) *AgentHandler {
	return &AgentHandler{agents: agents, sessions: sessions}
}

// GET /api/accounts/:accountID/agents
func (h *AgentHandler) List(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}
	accountID, ok := accountParam(c, cl)
	if !ok {
		return
	}

	page, err := h.agents.List(requestContext(c), accountID, services.ListAgentsQuery{
		Status:   models.AgentStatus(strings.TrimSpace(c.Query("status"))),
		Role:     models.AgentRole(strings.TrimSpace(c.Query("role"))),
		Query:    strings.TrimSpace(c.Query("q")),
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "per_page", 0),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, page.Agents, response.NewMeta(page.Page, page.PageSize, page.Total))
}

// POST /api/accounts/:accountID/agents
func (h *AgentHandler) Create(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}
	accountID, ok := accountParam(c, cl)
	if !ok {
		return
	}
	var req services.CreateAgentInput
	if !bindAndValidate(c, &req) {
		return
	}
	role := req.Role
	if role == "" {
		role = models.AgentRoleAgent
	}
	if !withinCallerRank(c, h.agents, cl, role) {
		return
	}

	agent, err := h.agents.CreateDirect(requestContext(c), accountID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, agent)
}

// GET /api/agents/:id
func (h *AgentHandler) Get(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}
	agent, ok := h.load(c, cl)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, agent)
}

// PATCH /api/agents/:id
func (h *AgentHandler) Update(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}
	var req services.ProfileUpdate
	if !bindAndValidate(c, &req) {
		return
	}
	agent, ok := h.load(c, cl)
	if !ok {
		return
	}

	updated, err := h.agents.UpdateProfile(requestContext(c), agent.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, updated)
}

// DELETE /api/agents/:id
func (h *AgentHandler) Delete(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}
	agent, ok := h.loadManaged(c, cl)
	if !ok {
		return
	}

	if err := h.agents.Delete(requestContext(c), agent.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

type updateRoleRequest struct {
	Role         models.AgentRole `json:"role" validate:"required,agent_role"`
	CustomRoleID *string          `json:"custom_role_id" validate:"omitempty,uuid"`
}

// PUT /api/agents/:id/role
func (h *AgentHandler) UpdateRole(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}
	var req updateRoleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	agent, ok := h.load(c, cl)
	if !ok {
		return
	}
	if !withinCallerRank(c, h.agents, cl, agent.Role, req.Role) {
		return
	}

	updated, err := h.agents.UpdateRole(requestContext(c), agent.ID, req.Role, req.CustomRoleID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, updated)
}

// POST /api/agents/:id/deactivate
func (h *AgentHandler) Deactivate(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}
	agent, ok := h.loadManaged(c, cl)
	if !ok {
		return
	}

	if err := h.agents.Deactivate(requestContext(c), agent.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": models.AgentStatusInactive})
}

// POST /api/agents/:id/reactivate
func (h *AgentHandler) Reactivate(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}
	agent, ok := h.load(c, cl)
	if !ok {
		return
	}

	updated, err := h.agents.Reactivate(requestContext(c), agent.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, updated)
}

type setPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8,max=128"`
	// RevokeSessions defaults to true when omitted.
	RevokeSessions *bool `json:"revoke_sessions"`
}

// POST /api/agents/:id/password
func (h *AgentHandler) SetPassword(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}
	var req setPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}
	agent, ok := h.loadManaged(c, cl)
	if !ok {
		return
	}

	revoke := req.RevokeSessions == nil || *req.RevokeSessions
	if err := h.agents.ChangeCredential(requestContext(c), agent.ID, req.Password, revoke); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"changed": true, "sessions_revoked": revoke})
}

// POST /api/agents/:id/unlock
func (h *AgentHandler) Unlock(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}
	agent, ok := h.load(c, cl)
	if !ok {
		return
	}

	if err := h.agents.ResetFailedLogins(requestContext(c), agent.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"unlocked": true})
}

// GET /api/agents/:id/permissions
func (h *AgentHandler) Permissions(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}
	agent, ok := h.load(c, cl)
	if !ok {
		return
	}

	perms, err := h.agents.PermissionsFor(requestContext(c), agent.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"agent_id": agent.ID, "permissions": perms})
}

// GET /api/agents/:id/sessions
func (h *AgentHandler) Sessions(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}
	agent, ok := h.load(c, cl)
	if !ok {
		return
	}

	sessions, err := h.sessions.ListForAgent(requestContext(c), agent.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, sessions)
}

// DELETE /api/agents/:id/sessions
func (h *AgentHandler) RevokeSessions(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}
	agent, ok := h.load(c, cl)
	if !ok {
		return
	}

	// The caller keeps its own session when revoking its own agent.
	except := ""
	if agent.ID == cl.AgentID {
		except = cl.SessionID
	}
	if err := h.sessions.RevokeAll(requestContext(c), agent.ID, except); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

func (h *AgentHandler) load(c *gin.Context, cl caller) (*models.Agent, bool) {
	agent, err := h.agents.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	if !sameAccount(c, cl, agent, services.ErrAgentNotFound) {
		return nil, false
	}
	return agent, true
}

// loadManaged is load for mutations that would let the caller take over or
// remove the target, which is only allowed up to the caller's own rank.
func (h *AgentHandler) loadManaged(c *gin.Context, cl caller) (*models.Agent, bool) {
	agent, ok := h.load(c, cl)
	if !ok {
		return nil, false
	}
	if !withinCallerRank(c, h.agents, cl, agent.Role) {
		return nil, false
	}
	return agent, true
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/agentdesk/internal/services"
	"github.com/charlesng35/agentdesk/internal/store"
	"github.com/charlesng35/agentdesk/pkg/response"
)

type InvitationHandler struct {
	invitations *services.InvitationService
	agents      *services.AgentService
}

func NewInvitationHandler(invitations *services.InvitationService, agents *services.AgentService) *InvitationHandler {
	return &InvitationHandler{invitations: invitations, agents: agents}
}

// POST /api/accounts/:accountID/invitations
//
// The raw token is only ever returned here.
func (h *InvitationHandler) Create(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}
	accountID, ok := accountParam(c, cl)
	if !ok {
		return
	}
	var req services.CreateInvitationInput
	if !bindAndValidate(c, &req) {
		return
	}
	if !withinCallerRank(c, h.agents, cl, req.Role) {
		return
	}

	issued, err := h.invitations.Create(requestContext(c), accountID, req, cl.AgentID, cl.TenantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, issued)
}

// GET /api/accounts/:accountID/invitations?status=pending|used|expired
func (h *InvitationHandler) List(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}
	accountID, ok := accountParam(c, cl)
	if !ok {
		return
	}

	state := store.InvitationState(strings.ToLower(strings.TrimSpace(c.Query("status"))))
	page, err := h.invitations.List(requestContext(c), accountID, state,
		parseIntQuery(c, "page", 1), parseIntQuery(c, "per_page", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, page.Invitations, response.NewMeta(page.Page, page.PageSize, page.Total))
}

// DELETE /api/invitations/:id
func (h *InvitationHandler) Revoke(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}
	ctx := requestContext(c)

	inv, err := h.invitations.Get(ctx, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if inv.AccountID != cl.AccountID {
		response.Error(c, services.ErrInvitationNotFound)
		return
	}

	if err := h.invitations.Revoke(ctx, inv.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GET /api/invitations/:token
//
// Public. Answers 200 with valid=false rather than an error status so the
// invite page can explain why a link is dead.
func (h *InvitationHandler) Validate(c *gin.Context) {
	result, err := h.invitations.Validate(requestContext(c), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// POST /api/invitations/:token/accept
//
// Field validation is left to the service so token failures take precedence.
func (h *InvitationHandler) Accept(c *gin.Context) {
	var req services.RegistrationInput
	if !bindJSON(c, &req) {
		return
	}

	agent, err := h.invitations.CompleteRegistration(requestContext(c), c.Param("token"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, agent)
}

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	iauth "github.com/charlesng35/agentdesk/internal/auth"
	"github.com/charlesng35/agentdesk/internal/models"
	"github.com/charlesng35/agentdesk/internal/services"
	"github.com/charlesng35/agentdesk/internal/store"
	appErrors "github.com/charlesng35/agentdesk/pkg/errors"
	"github.com/charlesng35/agentdesk/pkg/logger"
	"github.com/charlesng35/agentdesk/pkg/response"
)

// AuthHandler manages authentication flows (login/refresh/logout/me).
type AuthHandler struct {
	accounts store.Accounts
	agents   *services.AgentService
	sessions *iauth.SessionService
}

func NewAuthHandler(accounts store.Accounts, agents *services.AgentService, sessions *iauth.SessionService) *AuthHandler {
	return &AuthHandler{accounts: accounts, agents: agents, sessions: sessions}
}

type loginRequest struct {
	AccountID string `json:"account_id" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Tokens      iauth.TokenPair `json:"tokens"`
	Agent       *models.Agent   `json:"agent"`
	Permissions []string        `json:"permissions"`
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}
	ctx := requestContext(c)

	account, err := h.accounts.GetByID(ctx, strings.TrimSpace(req.AccountID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			response.Error(c, services.ErrInvalidCredentials)
			return
		}
		response.Error(c, err)
		return
	}

	agent, err := h.agents.Authenticate(ctx, account.ID, req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	pair, _, err := h.sessions.Create(ctx, agent, account.TenantID, iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		logger.WithModule("auth").Error("create session failed", zap.String("agent_id", agent.ID), zap.Error(err))
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	perms, err := h.agents.PermissionsFor(ctx, agent.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, sessionResponse{Tokens: pair, Agent: agent, Permissions: perms})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}

	pair, _, err := h.sessions.Refresh(requestContext(c), req.RefreshToken)
	if err != nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	response.Success(c, http.StatusOK, pair)
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}

	if err := h.sessions.Revoke(requestContext(c), cl.SessionID); err != nil && !errors.Is(err, iauth.ErrSessionNotFound) {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"revoked": true})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}
	ctx := requestContext(c)

	agent, err := h.agents.Get(ctx, cl.AgentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	perms, err := h.agents.PermissionsFor(ctx, agent.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"agent":       agent,
		"permissions": perms,
	})
}

// PATCH /api/auth/me
func (h *AuthHandler) UpdateMe(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}
	var req services.ProfileUpdate
	if !bindAndValidate(c, &req) {
		return
	}

	agent, err := h.agents.UpdateProfile(requestContext(c), cl.AgentID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, agent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=128"`
}

// POST /api/auth/password
//
// The caller proves the current secret; every session, including this one, is
// revoked on success.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}
	ctx := requestContext(c)

	agent, err := h.agents.Get(ctx, cl.AgentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if _, err := h.agents.Authenticate(ctx, agent.AccountID, agent.Email, req.CurrentPassword); err != nil {
		response.Error(c, err)
		return
	}
	if err := h.agents.ChangeCredential(ctx, agent.ID, req.NewPassword, true); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"changed": true})
}

// GET /api/auth/sessions
func (h *AuthHandler) Sessions(c *gin.Context) {
	cl, ok := callerFrom(c)
	if !ok {
		return
	}

	sessions, err := h.sessions.ListForAgent(requestContext(c), cl.AgentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sessions": sessions, "current_session_id": cl.SessionID})
}

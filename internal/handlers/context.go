package handlers

import (
	"context"
	stdErrors "errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/agentdesk/internal/middleware"
	"github.com/charlesng35/agentdesk/internal/models"
	"github.com/charlesng35/agentdesk/internal/services"
	"github.com/charlesng35/agentdesk/pkg/errors"
	"github.com/charlesng35/agentdesk/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// caller is the authenticated principal placed on the context by middleware.Auth.
type caller struct {
	AgentID   string
	AccountID string
	TenantID  string
	SessionID string
}

func callerFrom(c *gin.Context) (caller, bool) {
	cl := caller{
		AgentID:   c.GetString(middleware.CtxAgentIDKey),
		AccountID: c.GetString(middleware.CtxAccountIDKey),
		TenantID:  c.GetString(middleware.CtxTenantIDKey),
		SessionID: c.GetString(middleware.CtxSessionIDKey),
	}
	if cl.AgentID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return caller{}, false
	}
	return cl, true
}

// accountParam resolves :accountID and confines it to the caller's account.
func accountParam(c *gin.Context, cl caller) (string, bool) {
	accountID := strings.TrimSpace(c.Param("accountID"))
	if accountID == "" || accountID != cl.AccountID {
		response.Error(c, errors.ErrForbidden)
		return "", false
	}
	return accountID, true
}

// sameAccount hides agents of other accounts behind a not found.
func sameAccount(c *gin.Context, cl caller, agent *models.Agent, notFound error) bool {
	if agent == nil || agent.AccountID != cl.AccountID {
		response.Error(c, notFound)
		return false
	}
	return true
}

// withinCallerRank rejects roles ranked above the caller's own built-in role.
// A caller whose agent has since disappeared is treated as unauthenticated.
func withinCallerRank(c *gin.Context, agents *services.AgentService, cl caller, roles ...models.AgentRole) bool {
	self, err := agents.Get(requestContext(c), cl.AgentID)
	if err != nil {
		if stdErrors.Is(err, services.ErrAgentNotFound) {
			err = errors.ErrUnauthorized
		}
		response.Error(c, err)
		return false
	}
	for _, role := range roles {
		if role.Rank() > self.Role.Rank() {
			response.Error(c, services.ErrRoleAboveCaller)
			return false
		}
	}
	return true
}

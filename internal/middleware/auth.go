package middleware

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/agentdesk/internal/auth"
	"github.com/charlesng35/agentdesk/internal/models"
	"github.com/charlesng35/agentdesk/pkg/errors"
	"github.com/charlesng35/agentdesk/pkg/response"
)

const (
	CtxClaimsKey    = "authClaims"
	CtxAgentIDKey   = "agentID"
	CtxAccountIDKey = "accountID"
	CtxTenantIDKey  = "tenantID"
	CtxSessionIDKey = "sessionID"
)

// SessionValidator confirms that the session behind an access token is still live.
type SessionValidator interface {
	Validate(ctx context.Context, sessionID string) (*models.AgentSession, error)
}

// Auth enforces JWT authentication and rejects tokens whose session has been
// revoked or has expired, so revocation takes effect on the next request.
func Auth(jwt *iauth.JWTService, sessions SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			unauthorized(c, "")
			return
		}

		claims, err := jwt.ValidateAccessToken(strings.TrimSpace(authz[7:]))
		if err != nil {
			if stderrors.Is(err, iauth.ErrTokenExpired) {
				unauthorized(c, "token expired")
			} else {
				unauthorized(c, "token invalid")
			}
			return
		}

		if sessions != nil {
			session, err := sessions.Validate(c.Request.Context(), claims.SessionID)
			if err != nil || session.AgentID != claims.AgentID {
				unauthorized(c, "session revoked")
				return
			}
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxAgentIDKey, claims.AgentID)
		c.Set(CtxAccountIDKey, claims.AccountID)
		c.Set(CtxTenantIDKey, claims.TenantID)
		c.Set(CtxSessionIDKey, claims.SessionID)

		c.Next()
	}
}

// unauthorized answers 401. A non-empty reason is reported as an
// invalid_token challenge so clients can tell when to refresh.
func unauthorized(c *gin.Context, reason string) {
	challenge := "Bearer"
	if reason != "" {
		challenge = `Bearer error="invalid_token", error_description="` + reason + `"`
	}
	c.Header("WWW-Authenticate", challenge)
	response.Error(c, errors.ErrUnauthorized)
	c.Abort()
}

package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/agentdesk/internal/permissions"
	"github.com/charlesng35/agentdesk/pkg/errors"
	"github.com/charlesng35/agentdesk/pkg/logger"
	"github.com/charlesng35/agentdesk/pkg/metrics"
	"github.com/charlesng35/agentdesk/pkg/response"
)

// RequireCapability checks that the authenticated agent holds capability.
func RequireCapability(checker *permissions.Checker, capability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		agentID := c.GetString(CtxAgentIDKey)
		if agentID == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		allowed, err := checker.Check(c.Request.Context(), agentID, capability)
		if err != nil {
			metrics.CapabilityChecks.WithLabelValues(capability, "error").Inc()
			logger.WithModule("http").Error("capability check failed",
				zap.String("agent_id", agentID),
				zap.String("capability", capability),
				zap.Error(err),
			)
			response.Error(c, errors.ErrInternalServer.WithMessage("permission check failed"))
			c.Abort()
			return
		}
		if !allowed {
			metrics.CapabilityChecks.WithLabelValues(capability, "deny").Inc()
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		metrics.CapabilityChecks.WithLabelValues(capability, "allow").Inc()
		c.Next()
	}
}

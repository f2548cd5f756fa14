package services

import (
	"net/http"

	appErrors "github.com/charlesng35/agentdesk/pkg/errors"
)

// Typed failures surfaced by the agent identity services. They match with
// errors.Is by code, including copies carrying an internal cause.
var (
	ErrAgentNotFound         = appErrors.New("AGENT_NOT_FOUND", "Agent not found", http.StatusNotFound)
	ErrInvitationNotFound    = appErrors.New("INVITATION_NOT_FOUND", "Invitation not found", http.StatusNotFound)
	ErrAccountNotFound       = appErrors.New("ACCOUNT_NOT_FOUND", "Account not found", http.StatusNotFound)
	ErrCustomRoleNotFound    = appErrors.New("CUSTOM_ROLE_NOT_FOUND", "Custom role not found", http.StatusNotFound)
	ErrEmailAlreadyExists    = appErrors.New("EMAIL_ALREADY_EXISTS", "An agent with this email already exists", http.StatusConflict)
	ErrInvitationAlreadyUsed = appErrors.New("INVITATION_ALREADY_USED", "Invitation has already been used", http.StatusConflict)
	ErrInvitationExpired     = appErrors.New("INVITATION_EXPIRED", "Invitation has expired", http.StatusGone)
	ErrCrossTenantViolation  = appErrors.New("CROSS_TENANT_VIOLATION", "Account belongs to a different tenant", http.StatusForbidden)
	ErrAccountLocked         = appErrors.New("ACCOUNT_LOCKED", "Too many failed attempts, try again later", http.StatusLocked)
	ErrAgentInactive         = appErrors.New("AGENT_INACTIVE", "Agent is not active", http.StatusForbidden)
	ErrRoleAboveCaller       = appErrors.New("ROLE_ABOVE_CALLER", "Cannot assign or manage a role above your own", http.StatusForbidden)
	ErrInvalidCredentials    = appErrors.ErrInvalidCredentials
)

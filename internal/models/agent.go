package models

import (
	"strings"
	"time"
)

// AgentRole is the built-in privilege level of an agent.
type AgentRole string

const (
	AgentRoleOwner         AgentRole = "owner"
	AgentRoleAdministrator AgentRole = "administrator"
	AgentRoleAgent         AgentRole = "agent"
	AgentRoleViewer        AgentRole = "viewer"
)

// Valid reports whether the role is one of the built-in roles.
func (r AgentRole) Valid() bool {
	switch r {
	case AgentRoleOwner, AgentRoleAdministrator, AgentRoleAgent, AgentRoleViewer:
		return true
	}
	return false
}

// Rank orders the built-in roles from viewer (1) to owner (4). Unknown roles
// rank 0.
func (r AgentRole) Rank() int {
	switch r {
	case AgentRoleOwner:
		return 4
	case AgentRoleAdministrator:
		return 3
	case AgentRoleAgent:
		return 2
	case AgentRoleViewer:
		return 1
	}
	return 0
}

// Availability is the presence an agent advertises to the workspace.
type Availability string

const (
	AvailabilityOnline  Availability = "online"
	AvailabilityBusy    Availability = "busy"
	AvailabilityOffline Availability = "offline"
)

// Valid reports whether the availability value is recognised.
func (a Availability) Valid() bool {
	switch a {
	case AvailabilityOnline, AvailabilityBusy, AvailabilityOffline:
		return true
	}
	return false
}

// AgentStatus tracks whether an agent may sign in.
type AgentStatus string

const (
	AgentStatusActive   AgentStatus = "active"
	AgentStatusInactive AgentStatus = "inactive"
	AgentStatusPending  AgentStatus = "pending"
)

// Agent is a named operator bound to a single account.
type Agent struct {
	BaseModel

	AccountID      string       `gorm:"type:uuid;not null;uniqueIndex:idx_agents_account_email,priority:1" json:"account_id"`
	Email          string       `gorm:"not null;uniqueIndex:idx_agents_account_email,priority:2" json:"email"`
	CredentialHash string       `gorm:"not null" json:"-"`
	DisplayName    string       `gorm:"not null" json:"display_name"`
	AvatarRef      *string      `json:"avatar_ref,omitempty"`
	Role           AgentRole    `gorm:"type:varchar(32);not null;default:'agent'" json:"role"`
	CustomRoleID   *string      `gorm:"type:uuid;index" json:"custom_role_id,omitempty"`
	Availability   Availability `gorm:"type:varchar(16);not null;default:'offline'" json:"availability"`
	Status         AgentStatus  `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`

	FailedLoginCount int        `gorm:"not null;default:0" json:"-"`
	LockedUntil      *time.Time `json:"locked_until,omitempty"`
	LastActivityAt   *time.Time `json:"last_activity_at,omitempty"`
}

// IsActive reports whether the agent may authenticate.
func (a *Agent) IsActive() bool {
	return a != nil && a.Status == AgentStatusActive
}

// NormalizeEmail lowercases and trims an address so that uniqueness is
// enforced case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

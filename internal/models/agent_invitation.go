package models

import (
	"time"

	"gorm.io/gorm"
)

// AgentInvitation is a single-use admission ticket binding a future agent to
// an account and role. Only the token fingerprint is persisted.
type AgentInvitation struct {
	ID           string     `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID    string     `gorm:"type:uuid;not null;index" json:"account_id"`
	Email        *string    `gorm:"index" json:"email,omitempty"`
	TokenHash    string     `gorm:"not null;uniqueIndex" json:"-"`
	Role         AgentRole  `gorm:"type:varchar(32);not null" json:"role"`
	CustomRoleID *string    `gorm:"type:uuid" json:"custom_role_id,omitempty"`
	ExpiresAt    time.Time  `gorm:"not null;index" json:"expires_at"`
	UsedAt       *time.Time `json:"used_at,omitempty"`
	CreatedBy    string     `gorm:"type:uuid;not null" json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
}

// IsUsed reports whether the invitation has been consumed.
func (i *AgentInvitation) IsUsed() bool {
	return i.UsedAt != nil
}

// IsExpired reports whether the invitation has passed its expiry at now.
func (i *AgentInvitation) IsExpired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

func (i *AgentInvitation) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

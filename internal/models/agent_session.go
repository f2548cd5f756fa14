package models

import (
	"time"

	"gorm.io/gorm"
)

// AgentSession is a live authenticated context bound to one agent. Revocation
// deletes the row.
type AgentSession struct {
	ID             string    `gorm:"primaryKey;type:uuid" json:"id"`
	AgentID        string    `gorm:"type:uuid;not null;index" json:"agent_id"`
	AccountID      string    `gorm:"type:uuid;not null;index" json:"account_id"`
	TokenHash      string    `gorm:"not null;uniqueIndex" json:"-"`
	IPAddress      string    `json:"ip_address,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	ExpiresAt      time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// IsExpired reports whether the session has passed its expiry at now.
func (s *AgentSession) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// BeforeCreate assigns an identifier when none was set.
func (s *AgentSession) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

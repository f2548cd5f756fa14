package models

import "gorm.io/datatypes"

// Account is a workspace owned by a tenant. Agents, invitations and custom
// roles are scoped to one account.
type Account struct {
	BaseModel

	TenantID string         `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Name     string         `gorm:"not null" json:"name"`
	Settings datatypes.JSON `json:"settings,omitempty"`
}

package models

import "gorm.io/datatypes"

// CustomRole is an account defined named permission set that overrides the
// built-in role defaults for agents referencing it.
type CustomRole struct {
	BaseModel

	AccountID   string                      `gorm:"type:uuid;not null;uniqueIndex:idx_custom_roles_account_name,priority:1" json:"account_id"`
	Name        string                      `gorm:"not null;uniqueIndex:idx_custom_roles_account_name,priority:2" json:"name"`
	Description string                      `json:"description"`
	Permissions datatypes.JSONSlice[string] `json:"permissions"`
}

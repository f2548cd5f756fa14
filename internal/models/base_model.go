package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewID returns a fresh random identifier in the format every table uses.
func NewID() string {
	return uuid.NewString()
}

// ensureID fills an empty identifier in place.
func ensureID(id *string) {
	if *id == "" {
		*id = NewID()
	}
}

// BaseModel carries the identifier and audit timestamps shared by agents,
// accounts and custom roles.
type BaseModel struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns an identifier when none was set.
func (m *BaseModel) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}

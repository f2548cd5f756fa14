package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/agentdesk/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Account{},
		&models.CustomRole{},
		&models.Agent{},
		&models.AgentInvitation{},
		&models.AgentSession{},
	)
}

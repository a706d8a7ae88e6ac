package repository

import (
	"fmt"

	"github.com/amirphl/ams-registry/models"
	"gorm.io/gorm"
)

// AutoMigrate creates or updates the registry schema
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

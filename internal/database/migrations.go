package database

import (
	"gorm.io/gorm"

	"github.com/introweave/introweave/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Tenant{},
		&models.User{},
		&models.Member{},
		&models.Introduction{},
		&models.FederationConsent{},
		&models.CrossTenantIntroRequest{},
		&models.RateLimitWindow{},
		&models.DigestQueueEntry{},
		&models.OptInRequest{},
		&models.Notification{},
		&models.CacheEntry{},
	)
}

// SeedData populates the default tenant used by single-network installs.
func SeedData(db *gorm.DB) error {
	defaultTenant := models.Tenant{
		BaseModel: models.BaseModel{ID: "00000000-0000-0000-0000-000000000001"},
		Name:      "Default Network",
		Slug:      "default",
		Status:    models.TenantStatusActive,
	}

	return db.Where(models.Tenant{Slug: defaultTenant.Slug}).
		Attrs(defaultTenant).
		FirstOrCreate(&models.Tenant{}).Error
}

package database

import (
	"Aperture-Backend/internal/auth"
	"Aperture-Backend/internal/config"
	"Aperture-Backend/internal/domain"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AutoMigrate runs automatic migrations for all domain models.
func AutoMigrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("starting database auto-migration")

	// Migration order matters because of foreign keys: sessions before
	// their child tables.
	models := []interface{}{
		&domain.User{},
		&domain.Session{},
		&domain.Event{},
		&domain.PageView{},
		&domain.PerformanceMetrics{},
	}

	for _, model := range models {
		modelName := fmt.Sprintf("%T", model)

		if err := db.AutoMigrate(model); err != nil {
			log.Error("failed to migrate model",
				zap.String("model", modelName),
				zap.Error(err))
			return fmt.Errorf("failed to migrate model %s: %w", modelName, err)
		}

		log.Debug("model migrated", zap.String("model", modelName))
	}

	log.Info("database auto-migration completed successfully", zap.Int("migrated_models", len(models)))
	return nil
}

// SeedData ensures the configured admin user exists so the dashboard can be
// logged into on a fresh database.
func SeedData(db *gorm.DB, authCfg *config.Auth, passwords *auth.PasswordService, log *zap.Logger) error {
	if authCfg.AdminEmail == "" || authCfg.AdminPassword == "" {
		log.Info("no admin credentials configured, skipping seeding")
		return nil
	}

	var count int64
	if err := db.Model(&domain.User{}).Where("email = ?", authCfg.AdminEmail).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check existing admin user: %w", err)
	}
	if count > 0 {
		log.Info("admin user already exists, skipping seeding", zap.String("email", authCfg.AdminEmail))
		return nil
	}

	hash, err := passwords.Hash(authCfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin := domain.User{
		Email:        authCfg.AdminEmail,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	log.Info("seeded admin user", zap.String("email", admin.Email))
	return nil
}

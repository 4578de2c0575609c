package db

import (
	"context"
	"fmt"
	"time"

	"github.com/stwalsh4118/playerctl/internal/models"
	"gorm.io/gorm/clause"
)

// SettingsRepository persists the player settings singleton row
type SettingsRepository struct {
	db *DB
}

// NewSettingsRepository creates a new settings repository
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get retrieves the stored settings, ErrNotFound if none were saved yet
func (r *SettingsRepository) Get(ctx context.Context) (*models.PlayerSettings, error) {
	var settings models.PlayerSettings
	if err := r.db.WithContext(ctx).Where("id = ?", 1).First(&settings).Error; err != nil {
		return nil, MapGormError(err)
	}
	return &settings, nil
}

// Save inserts or replaces the singleton row
func (r *SettingsRepository) Save(ctx context.Context, settings *models.PlayerSettings) error {
	settings.ID = 1
	settings.UpdatedAt = time.Now().UTC()

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(settings).Error
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", MapGormError(err))
	}
	return nil
}

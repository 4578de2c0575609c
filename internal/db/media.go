package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/playerctl/internal/models"
	"gorm.io/gorm"
)

// MediaRepository handles database operations for catalog media items
type MediaRepository struct {
	db *DB
}

// NewMediaRepository creates a new media repository
func NewMediaRepository(db *DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// Create inserts a new media item
func (r *MediaRepository) Create(ctx context.Context, item *models.MediaItem) error {
	return create(r.db.WithContext(ctx), item)
}

// CreateBatch inserts all items in one transaction; none are stored if one fails
func (r *MediaRepository) CreateBatch(ctx context.Context, items []*models.MediaItem) error {
	return r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		for _, item := range items {
			if err := create(tx, item); err != nil {
				return err
			}
		}
		return nil
	})
}

func create(tx *gorm.DB, item *models.MediaItem) error {
	if err := tx.Create(item).Error; err != nil {
		return fmt.Errorf("failed to create media item %q: %w", item.Identifier, MapGormError(err))
	}
	return nil
}

// GetByID retrieves a media item by its UUID
func (r *MediaRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.MediaItem, error) {
	var item models.MediaItem
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).First(&item)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &item, nil
}

// GetByIdentifier retrieves a media item by its opaque identifier
func (r *MediaRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.MediaItem, error) {
	var item models.MediaItem
	result := r.db.WithContext(ctx).Where("identifier = ?", identifier).First(&item)
	if result.Error != nil {
		return nil, MapGormError(result.Error)
	}
	return &item, nil
}

// List retrieves media items, newest first, with pagination
func (r *MediaRepository) List(ctx context.Context, limit, offset int) ([]*models.MediaItem, error) {
	var items []*models.MediaItem
	query := r.db.WithContext(ctx).Order("created_at DESC").Order("identifier ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list media items: %w", MapGormError(err))
	}
	return items, nil
}

// Count returns the total number of media items
func (r *MediaRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.MediaItem{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count media items: %w", MapGormError(err))
	}
	return count, nil
}

// Update updates the title and URL of an existing media item
func (r *MediaRepository) Update(ctx context.Context, item *models.MediaItem) error {
	item.UpdatedAt = time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.MediaItem{}).
		Where("id = ?", item.ID.String()).
		Updates(map[string]interface{}{
			"title":      item.Title,
			"url":        item.URL,
			"updated_at": item.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update media item: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a media item by ID
func (r *MediaRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&models.MediaItem{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete media item: %w", MapGormError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

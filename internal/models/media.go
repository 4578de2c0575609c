package models

import (
	"time"

	"github.com/google/uuid"
)

// MediaItem maps an opaque media identifier to a playable URL
type MediaItem struct {
	ID         uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	Identifier string    `json:"identifier" gorm:"type:text;not null;uniqueIndex;column:identifier" binding:"required"`
	Title      string    `json:"title" gorm:"type:text;not null;column:title"`
	URL        string    `json:"url" gorm:"type:text;not null;column:url" binding:"required"`
	CreatedAt  time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:updated_at"`
}

// TableName overrides the gorm table name
func (MediaItem) TableName() string {
	return "media_items"
}

// NewMediaItem creates a new MediaItem with generated UUID and timestamps
func NewMediaItem(identifier, title, url string) *MediaItem {
	now := time.Now().UTC()
	return &MediaItem{
		ID:         uuid.New(),
		Identifier: identifier,
		Title:      title,
		URL:        url,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

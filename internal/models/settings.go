package models

import (
	"time"

	"github.com/stwalsh4118/playerctl/internal/player"
	"github.com/stwalsh4118/playerctl/internal/timerange"
)

// PlayerSettings are the persisted caller-mutable player settings. Settings is
// a singleton table with only one row.
type PlayerSettings struct {
	ID                     int       `json:"-" gorm:"type:integer;primaryKey;column:id"`
	MinimumDVRWindowMillis int64     `json:"minimum_dvr_window_ms" gorm:"type:integer;not null;column:minimum_dvr_window_ms"`
	LiveToleranceMillis    int64     `json:"live_tolerance_ms" gorm:"type:integer;not null;column:live_tolerance_ms"`
	OverlayHidingMillis    int64     `json:"overlay_hiding_delay_ms" gorm:"type:integer;not null;column:overlay_hiding_delay_ms"`
	AutoPlay               bool      `json:"autoplay" gorm:"type:integer;not null;column:autoplay"`
	UpdatedAt              time.Time `json:"updated_at" gorm:"type:datetime;column:updated_at"`
}

// TableName overrides the gorm table name
func (PlayerSettings) TableName() string {
	return "player_settings"
}

// MinimumDVRWindow returns the stored minimum DVR window length
func (s *PlayerSettings) MinimumDVRWindow() time.Duration {
	return time.Duration(s.MinimumDVRWindowMillis) * time.Millisecond
}

// LiveTolerance returns the stored live tolerance
func (s *PlayerSettings) LiveTolerance() time.Duration {
	return time.Duration(s.LiveToleranceMillis) * time.Millisecond
}

// OverlayHidingDelay returns the stored overlay hiding delay
func (s *PlayerSettings) OverlayHidingDelay() time.Duration {
	return time.Duration(s.OverlayHidingMillis) * time.Millisecond
}

// NewPlayerSettings captures controller settings for storage
func NewPlayerSettings(cfg player.Config) *PlayerSettings {
	return &PlayerSettings{
		ID:                     1,
		MinimumDVRWindowMillis: cfg.Live.MinimumDVRWindowLength.Milliseconds(),
		LiveToleranceMillis:    cfg.Live.LiveTolerance.Milliseconds(),
		OverlayHidingMillis:    cfg.OverlayHidingDelay.Milliseconds(),
		AutoPlay:               cfg.AutoPlay,
	}
}

// PlayerConfig converts the stored settings back to controller settings
func (s *PlayerSettings) PlayerConfig() player.Config {
	return player.Config{
		Live: timerange.LiveConfiguration{
			MinimumDVRWindowLength: s.MinimumDVRWindow(),
			LiveTolerance:          s.LiveTolerance(),
		}.Normalized(),
		OverlayHidingDelay: timerange.ClampDuration(s.OverlayHidingDelay()),
		AutoPlay:           s.AutoPlay,
	}
}

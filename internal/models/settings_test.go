package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stwalsh4118/playerctl/internal/player"
	"github.com/stwalsh4118/playerctl/internal/timerange"
)

func TestPlayerSettings_RoundTripsControllerConfig(t *testing.T) {
	cfg := player.Config{
		Live: timerange.LiveConfiguration{
			MinimumDVRWindowLength: 90 * time.Second,
			LiveTolerance:          1500 * time.Millisecond,
		},
		OverlayHidingDelay: 0,
		AutoPlay:           false,
	}

	s := NewPlayerSettings(cfg)
	assert.Equal(t, int64(90000), s.MinimumDVRWindowMillis)
	assert.Equal(t, int64(1500), s.LiveToleranceMillis)
	assert.Equal(t, cfg, s.PlayerConfig())
}

func TestPlayerSettings_ClampsStoredNegatives(t *testing.T) {
	s := &PlayerSettings{LiveToleranceMillis: -10, OverlayHidingMillis: -5, AutoPlay: true}

	cfg := s.PlayerConfig()
	assert.Equal(t, time.Duration(0), cfg.Live.LiveTolerance)
	assert.Equal(t, time.Duration(0), cfg.OverlayHidingDelay)
	assert.True(t, cfg.AutoPlay)
}

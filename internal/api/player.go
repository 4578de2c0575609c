package api

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stwalsh4118/playerctl/internal/logger"
	"github.com/stwalsh4118/playerctl/internal/models"
	"github.com/stwalsh4118/playerctl/internal/player"
	"github.com/stwalsh4118/playerctl/internal/timerange"
)

// maxDurationSeconds is the largest whole second count a time.Duration holds
const maxDurationSeconds = math.MaxInt64 / float64(time.Second)

// Request/Response DTOs

// PlayRequest starts a new item. URL is an identifier when a catalog is configured.
type PlayRequest struct {
	URL string `json:"url" binding:"required"`
}

// SeekRequest moves the playhead
type SeekRequest struct {
	PositionSeconds *float64 `json:"position_seconds" binding:"required"`
}

// GestureRequest reports a gesture recognised by the remote UI
type GestureRequest struct {
	Gesture string `json:"gesture" binding:"required"`
}

// SurfaceRequest attaches the player to a named surface; an empty name detaches it
type SurfaceRequest struct {
	Surface         string   `json:"surface"`
	OverlaySurfaces []string `json:"overlay_surfaces,omitempty"`
	ActivitySurface string   `json:"activity_surface,omitempty"`
}

// ConfigRequest updates player settings; omitted fields keep their value
type ConfigRequest struct {
	MinimumDVRWindowSeconds   *float64 `json:"minimum_dvr_window_seconds"`
	LiveToleranceSeconds      *float64 `json:"live_tolerance_seconds"`
	OverlayHidingDelaySeconds *float64 `json:"overlay_hiding_delay_seconds"`
	AutoPlay                  *bool    `json:"autoplay"`
}

// ConfigResponse represents the player settings
type ConfigResponse struct {
	MinimumDVRWindowSeconds   float64 `json:"minimum_dvr_window_seconds"`
	LiveToleranceSeconds      float64 `json:"live_tolerance_seconds"`
	OverlayHidingDelaySeconds float64 `json:"overlay_hiding_delay_seconds"`
	AutoPlay                  bool    `json:"autoplay"`
}

// TimeRangeResponse represents a seekable range in seconds
type TimeRangeResponse struct {
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	Indefinite   bool    `json:"indefinite"`
}

// PlayerResponse represents the observable player properties
type PlayerResponse struct {
	ItemID                    string            `json:"item_id,omitempty"`
	URL                       string            `json:"url,omitempty"`
	PlaybackState             string            `json:"playback_state"`
	Error                     string            `json:"error,omitempty"`
	ErrorCategory             string            `json:"error_category,omitempty"`
	StreamType                string            `json:"stream_type"`
	MediaType                 string            `json:"media_type"`
	IsLive                    bool              `json:"is_live"`
	TimeRange                 TimeRangeResponse `json:"time_range"`
	CurrentTimeSeconds        float64           `json:"current_time_seconds"`
	Rate                      float64           `json:"rate"`
	OverlaysVisible           bool              `json:"overlays_visible"`
	OverlaySurfaces           []string          `json:"overlay_surfaces,omitempty"`
	VideoGravity              string            `json:"video_gravity"`
	PictureInPictureAvailable bool              `json:"picture_in_picture_available"`
	PictureInPictureActive    bool              `json:"picture_in_picture_active"`
	Config                    ConfigResponse    `json:"config"`
}

// SettingsStore persists player settings changed through the API
type SettingsStore interface {
	Save(ctx context.Context, settings *models.PlayerSettings) error
}

// PlayerHandler handles player-related API requests
type PlayerHandler struct {
	controller *player.Controller
	settings   SettingsStore
}

// NewPlayerHandler creates a new player handler. settings may be nil.
func NewPlayerHandler(controller *player.Controller, settings SettingsStore) *PlayerHandler {
	return &PlayerHandler{controller: controller, settings: settings}
}

// Get handles GET /api/player
func (h *PlayerHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.response())
}

// Play handles POST /api/player/play
func (h *PlayerHandler) Play(c *gin.Context) {
	var req PlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	if err := h.controller.PlayURL(req.URL); err != nil {
		writeControllerError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, h.response())
}

// Resume handles POST /api/player/resume
func (h *PlayerHandler) Resume(c *gin.Context) {
	h.command(c, h.controller.Play)
}

// Pause handles POST /api/player/pause
func (h *PlayerHandler) Pause(c *gin.Context) {
	h.command(c, h.controller.Pause)
}

// Activity handles POST /api/player/activity
func (h *PlayerHandler) Activity(c *gin.Context) {
	h.command(c, h.controller.RegisterActivity)
}

// ToggleOverlays handles POST /api/player/overlays/toggle
func (h *PlayerHandler) ToggleOverlays(c *gin.Context) {
	h.command(c, h.controller.ToggleOverlays)
}

// Seek handles POST /api/player/seek
func (h *PlayerHandler) Seek(c *gin.Context) {
	var req SeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "position_seconds is required")
		return
	}

	position, ok := secondsToDuration(*req.PositionSeconds)
	if !ok {
		abortWithError(c, http.StatusBadRequest, "invalid_position", "position_seconds is out of range")
		return
	}

	if err := h.controller.Seek(position); err != nil {
		writeControllerError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, h.response())
}

// Gesture handles POST /api/player/gesture
func (h *PlayerHandler) Gesture(c *gin.Context) {
	var req GestureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "gesture is required")
		return
	}

	g, ok := player.ParseGesture(req.Gesture)
	if !ok {
		abortWithError(c, http.StatusBadRequest, "invalid_gesture", "gesture must be single_tap or double_tap")
		return
	}
	h.command(c, func() error { return h.controller.HandleGesture(g) })
}

// Surface handles POST /api/player/surface
func (h *PlayerHandler) Surface(c *gin.Context) {
	var req SurfaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	var surface player.Surface
	if req.Surface != "" {
		surface = player.NamedSurface(req.Surface)
	}
	overlays := make([]player.Surface, 0, len(req.OverlaySurfaces))
	for _, name := range req.OverlaySurfaces {
		overlays = append(overlays, player.NamedSurface(name))
	}

	h.command(c, func() error {
		if err := h.controller.AttachToSurface(surface); err != nil {
			return err
		}
		if err := h.controller.SetOverlaySurfaces(overlays); err != nil {
			return err
		}
		if req.ActivitySurface != "" {
			return h.controller.SetActivitySurface(player.NamedSurface(req.ActivitySurface))
		}
		return nil
	})
}

// StartPictureInPicture handles POST /api/player/pip/start
func (h *PlayerHandler) StartPictureInPicture(c *gin.Context) {
	h.pictureInPicture(c, player.PictureInPictureController.Start)
}

// StopPictureInPicture handles POST /api/player/pip/stop
func (h *PlayerHandler) StopPictureInPicture(c *gin.Context) {
	h.pictureInPicture(c, player.PictureInPictureController.Stop)
}

func (h *PlayerHandler) pictureInPicture(c *gin.Context, action func(player.PictureInPictureController) error) {
	pip, ok := h.controller.PictureInPictureController().Get()
	if !ok {
		abortWithError(c, http.StatusConflict, "pip_unavailable", "Picture in picture is not available")
		return
	}
	if err := action(pip); err != nil {
		_ = c.Error(err)
		abortWithError(c, http.StatusInternalServerError, "pip_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, h.response())
}

// GetConfig handles GET /api/player/config
func (h *PlayerHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, configResponse(h.controller.Config()))
}

// UpdateConfig handles PUT /api/player/config
func (h *PlayerHandler) UpdateConfig(c *gin.Context) {
	var req ConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	cfg := h.controller.Config()
	durations := []struct {
		seconds *float64
		dst     *time.Duration
	}{
		{req.MinimumDVRWindowSeconds, &cfg.Live.MinimumDVRWindowLength},
		{req.LiveToleranceSeconds, &cfg.Live.LiveTolerance},
		{req.OverlayHidingDelaySeconds, &cfg.OverlayHidingDelay},
	}
	for _, d := range durations {
		if d.seconds == nil {
			continue
		}
		v, ok := secondsToDuration(*d.seconds)
		if !ok {
			abortWithError(c, http.StatusBadRequest, "invalid_duration", "duration seconds are out of range")
			return
		}
		*d.dst = v
	}
	if req.AutoPlay != nil {
		cfg.AutoPlay = *req.AutoPlay
	}

	if err := h.controller.ApplyConfig(cfg); err != nil {
		writeControllerError(c, err)
		return
	}
	applied := h.controller.Config()

	if h.settings != nil {
		if err := h.settings.Save(c.Request.Context(), models.NewPlayerSettings(applied)); err != nil {
			logger.Log.Error().Err(err).Msg("Failed to persist player settings")
			_ = c.Error(err)
			abortWithError(c, http.StatusInternalServerError, "settings_not_saved", "Settings applied but could not be saved")
			return
		}
	}

	logger.Log.Info().
		Dur("minimum_dvr_window_length", applied.Live.MinimumDVRWindowLength).
		Dur("live_tolerance", applied.Live.LiveTolerance).
		Dur("overlay_hiding_delay", applied.OverlayHidingDelay).
		Bool("autoplay", applied.AutoPlay).
		Msg("Player settings updated")

	c.JSON(http.StatusOK, configResponse(applied))
}

// command runs a controller command and answers with the new properties
func (h *PlayerHandler) command(c *gin.Context, fn func() error) {
	if err := fn(); err != nil {
		writeControllerError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.response())
}

func (h *PlayerHandler) response() PlayerResponse {
	s := h.controller.Snapshot()
	resp := PlayerResponse{
		URL:           s.URL,
		PlaybackState: s.PlaybackState.String(),
		Error:         s.Error,
		ErrorCategory: s.ErrorCategory,
		StreamType:    s.StreamType.String(),
		MediaType:     s.MediaType.String(),
		IsLive:        s.IsLive,
		TimeRange: TimeRangeResponse{
			StartSeconds: s.TimeRange.Start.Seconds(),
			EndSeconds:   s.TimeRange.End.Seconds(),
			Indefinite:   s.TimeRange.Indefinite,
		},
		CurrentTimeSeconds:        s.CurrentTime.Seconds(),
		Rate:                      s.Rate,
		OverlaysVisible:           s.OverlaysVisible,
		OverlaySurfaces:           s.OverlaySurfaces,
		VideoGravity:              s.VideoGravity.String(),
		PictureInPictureAvailable: s.PictureInPictureAvailable,
		Config:                    configResponse(s.Config),
	}
	if s.ItemID != uuid.Nil {
		resp.ItemID = s.ItemID.String()
	}
	if pip, ok := h.controller.PictureInPictureController().Get(); ok {
		resp.PictureInPictureActive = pip.Active()
	}
	return resp
}

func configResponse(cfg player.Config) ConfigResponse {
	return ConfigResponse{
		MinimumDVRWindowSeconds:   cfg.Live.MinimumDVRWindowLength.Seconds(),
		LiveToleranceSeconds:      cfg.Live.LiveTolerance.Seconds(),
		OverlayHidingDelaySeconds: cfg.OverlayHidingDelay.Seconds(),
		AutoPlay:                  cfg.AutoPlay,
	}
}

// secondsToDuration converts and clamps negatives to zero. It reports false
// for values a time.Duration cannot hold.
func secondsToDuration(s float64) (time.Duration, bool) {
	if math.IsNaN(s) || math.IsInf(s, 0) || math.Abs(s) >= maxDurationSeconds {
		return 0, false
	}
	return timerange.ClampDuration(time.Duration(s * float64(time.Second))), true
}

// SetupPlayerRoutes registers player routes
func SetupPlayerRoutes(apiGroup *gin.RouterGroup, controller *player.Controller, settings SettingsStore) {
	handler := NewPlayerHandler(controller, settings)

	playerGroup := apiGroup.Group("/player")
	{
		playerGroup.GET("", handler.Get)
		playerGroup.POST("/play", handler.Play)
		playerGroup.POST("/resume", handler.Resume)
		playerGroup.POST("/pause", handler.Pause)
		playerGroup.POST("/seek", handler.Seek)
		playerGroup.POST("/activity", handler.Activity)
		playerGroup.POST("/overlays/toggle", handler.ToggleOverlays)
		playerGroup.POST("/gesture", handler.Gesture)
		playerGroup.POST("/surface", handler.Surface)
		playerGroup.POST("/pip/start", handler.StartPictureInPicture)
		playerGroup.POST("/pip/stop", handler.StopPictureInPicture)
		playerGroup.GET("/config", handler.GetConfig)
		playerGroup.PUT("/config", handler.UpdateConfig)
	}
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/playerctl/internal/db"
	"github.com/stwalsh4118/playerctl/internal/player"
)

// HealthResponse represents the response from the health check endpoint
type HealthResponse struct {
	Status        string                 `json:"status"`
	Database      string                 `json:"database"`
	PlaybackState string                 `json:"playback_state"`
	Time          string                 `json:"time"`
	Details       map[string]interface{} `json:"details,omitempty"`
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db         *db.DB
	controller *player.Controller
}

// NewHealthHandler creates a new health check handler
func NewHealthHandler(database *db.DB, controller *player.Controller) *HealthHandler {
	return &HealthHandler{db: database, controller: controller}
}

// Check handles the health check endpoint
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:        "ok",
		PlaybackState: h.controller.PlaybackState().String(),
		Time:          time.Now().UTC().Format(time.RFC3339),
		Details:       make(map[string]interface{}),
	}

	if err := h.db.Health(ctx); err != nil {
		response.Status = "degraded"
		response.Database = "unhealthy"
		response.Details["database_error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	response.Database = "healthy"
	c.JSON(http.StatusOK, response)
}

// SetupHealthRoutes registers health check routes
func SetupHealthRoutes(apiGroup *gin.RouterGroup, database *db.DB, controller *player.Controller) {
	handler := NewHealthHandler(database, controller)
	apiGroup.GET("/health", handler.Check)
}

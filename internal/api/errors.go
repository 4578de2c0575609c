package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/playerctl/internal/playback"
	"github.com/stwalsh4118/playerctl/internal/player"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// DeleteResponse represents a successful delete operation
type DeleteResponse struct {
	Message string `json:"message"`
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: code, Message: message})
}

// writeControllerError maps controller command errors to HTTP responses
func writeControllerError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, playback.ErrInvalidTransition):
		abortWithError(c, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, player.ErrEmptyURL):
		abortWithError(c, http.StatusBadRequest, "missing_url", err.Error())
	case errors.Is(err, player.ErrControllerClosed):
		abortWithError(c, http.StatusServiceUnavailable, "player_closed", err.Error())
	default:
		abortWithError(c, http.StatusInternalServerError, "player_error", err.Error())
	}
}

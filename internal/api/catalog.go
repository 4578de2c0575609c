package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stwalsh4118/playerctl/internal/catalog"
	"github.com/stwalsh4118/playerctl/internal/logger"
	"github.com/stwalsh4118/playerctl/internal/models"
)

const (
	defaultCatalogLimit = 20
	maxCatalogLimit     = 1000
)

// CatalogListResponse represents a paginated list of catalog entries
type CatalogListResponse struct {
	Items  []*models.MediaItem `json:"items"`
	Total  int64               `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// ImportRequest adds several entries at once
type ImportRequest struct {
	Entries []catalog.Entry `json:"entries" binding:"required,min=1,dive"`
}

// CatalogHandler handles catalog-related API requests
type CatalogHandler struct {
	service *catalog.Service
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(service *catalog.Service) *CatalogHandler {
	return &CatalogHandler{service: service}
}

// List handles GET /api/catalog
func (h *CatalogHandler) List(c *gin.Context) {
	limit := defaultCatalogLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = min(l, maxCatalogLimit)
		}
	}

	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	items, total, err := h.service.List(ctx, limit, offset)
	if err != nil {
		logger.Log.Error().
			Err(err).
			Int("limit", limit).
			Int("offset", offset).
			Msg("Failed to list catalog")
		abortWithError(c, http.StatusInternalServerError, "query_failed", "Failed to retrieve catalog")
		return
	}

	c.JSON(http.StatusOK, CatalogListResponse{
		Items:  items,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// Create handles POST /api/catalog
func (h *CatalogHandler) Create(c *gin.Context) {
	var req catalog.Entry
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "identifier and url are required")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	item, err := h.service.Add(ctx, req)
	if err != nil {
		writeCatalogError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// Import handles POST /api/catalog/import
func (h *CatalogHandler) Import(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "entries must be a non-empty list of identifier and url pairs")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	items, err := h.service.Import(ctx, req.Entries)
	if err != nil {
		writeCatalogError(c, err)
		return
	}
	c.JSON(http.StatusCreated, CatalogListResponse{
		Items: items,
		Total: int64(len(items)),
		Limit: len(items),
	})
}

// Get handles GET /api/catalog/:id
func (h *CatalogHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	item, err := h.service.Get(ctx, id)
	if err != nil {
		writeCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Update handles PUT /api/catalog/:id
func (h *CatalogHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req catalog.Update
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	item, err := h.service.Update(ctx, id, req)
	if err != nil {
		writeCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// Delete handles DELETE /api/catalog/:id
func (h *CatalogHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.service.Delete(ctx, id); err != nil {
		writeCatalogError(c, err)
		return
	}
	c.JSON(http.StatusOK, DeleteResponse{Message: "Catalog entry deleted successfully"})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid_id", "Invalid catalog entry ID format")
		return uuid.Nil, false
	}
	return id, true
}

func writeCatalogError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case catalog.IsUnknownIdentifier(err):
		abortWithError(c, http.StatusNotFound, "not_found", err.Error())
	case catalog.IsDuplicateIdentifier(err):
		abortWithError(c, http.StatusConflict, "duplicate_identifier", err.Error())
	case catalog.IsValidation(err):
		abortWithError(c, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		logger.Log.Error().Err(err).Msg("Catalog operation failed")
		abortWithError(c, http.StatusInternalServerError, "query_failed", "Catalog operation failed")
	}
}

// SetupCatalogRoutes registers catalog routes
func SetupCatalogRoutes(apiGroup *gin.RouterGroup, service *catalog.Service) {
	handler := NewCatalogHandler(service)

	apiGroup.GET("/catalog", handler.List)
	apiGroup.POST("/catalog", handler.Create)
	apiGroup.POST("/catalog/import", handler.Import)
	apiGroup.GET("/catalog/:id", handler.Get)
	apiGroup.PUT("/catalog/:id", handler.Update)
	apiGroup.DELETE("/catalog/:id", handler.Delete)
}

// Package server provides the HTTP server setup and routing configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/playerctl/internal/api"
	"github.com/stwalsh4118/playerctl/internal/catalog"
	"github.com/stwalsh4118/playerctl/internal/config"
	"github.com/stwalsh4118/playerctl/internal/db"
	"github.com/stwalsh4118/playerctl/internal/logger"
	"github.com/stwalsh4118/playerctl/internal/metrics"
	"github.com/stwalsh4118/playerctl/internal/middleware"
	"github.com/stwalsh4118/playerctl/internal/player"
)

// Server represents the HTTP server
type Server struct {
	config     *config.Config
	db         *db.DB
	repos      *db.Repositories
	controller *player.Controller
	catalog    *catalog.Service
	metrics    *metrics.Metrics
	router     *gin.Engine
	server     *http.Server
}

// New creates a new server instance around a running controller. m may be nil.
func New(cfg *config.Config, database *db.DB, repos *db.Repositories, controller *player.Controller, m *metrics.Metrics) *Server {
	s := &Server{
		config:     cfg,
		db:         database,
		repos:      repos,
		controller: controller,
		catalog:    catalog.NewService(repos),
		metrics:    m,
	}
	s.setupRouter()
	return s
}

// Router returns the configured handler
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()

	s.router.Use(middleware.RequestLogger())
	s.router.Use(gin.Recovery())
	s.router.Use(cors.New(corsConfig(s.config.Server.CORSOrigins)))
	if s.metrics != nil {
		s.router.Use(middleware.RequestMetrics(s.metrics))
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	apiGroup := s.router.Group("/api")

	api.SetupHealthRoutes(apiGroup, s.db, s.controller)
	api.SetupPlayerRoutes(apiGroup, s.controller, s.repos.Settings)
	api.SetupCatalogRoutes(apiGroup, s.catalog)
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       s.config.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.config.Server.WriteTimeout,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Msg("Starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server and the player controller
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	// Check if server was started before attempting shutdown
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	if s.controller != nil {
		s.controller.Close()
	}

	logger.Log.Info().Msg("Server stopped")
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/stwalsh4118/playerctl/internal/catalog"
	"github.com/stwalsh4118/playerctl/internal/config"
	"github.com/stwalsh4118/playerctl/internal/db"
	"github.com/stwalsh4118/playerctl/internal/engine"
	"github.com/stwalsh4118/playerctl/internal/logger"
	"github.com/stwalsh4118/playerctl/internal/metrics"
	"github.com/stwalsh4118/playerctl/internal/player"
	"github.com/stwalsh4118/playerctl/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serveConfigPath string

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Config file; watched for player setting changes")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the player controller HTTP service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context(), serveConfigPath)
	},
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Pretty)
	logger.Log.Info().
		Str("database", cfg.Database.Path).
		Str("log_level", cfg.Logging.Level).
		Msg("Configuration loaded")

	database, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Log.Error().Err(err).Msg("Failed to close database")
		}
	}()

	repos := db.NewRepositories(database)

	playerCfg := cfg.Player.Controller()
	if stored, err := repos.Settings.Get(ctx); err == nil {
		playerCfg = stored.PlayerConfig()
		logger.Log.Info().Msg("Using stored player settings")
	} else if !db.IsNotFound(err) {
		return fmt.Errorf("failed to read player settings: %w", err)
	}

	hls := engine.New(engine.Options{
		HTTPTimeout:            cfg.Engine.HTTPTimeout,
		TimeUpdateInterval:     cfg.Engine.TimeUpdateInterval,
		ReloadFailureThreshold: cfg.Engine.ReloadFailureThreshold,
		PictureInPicture:       cfg.Engine.PictureInPicture,
	})
	controller := player.New(hls,
		player.WithDataSource(catalog.NewService(repos)),
		player.WithConfig(playerCfg),
	)

	m := metrics.New()
	m.Observe(controller)

	srv := server.New(cfg, database, repos, controller, m)

	if configPath != "" {
		watcher, err := config.NewWatcher(configPath, func(next *config.Config) {
			if err := controller.ApplyConfig(next.Player.Controller()); err != nil {
				logger.Log.Warn().Err(err).Msg("Failed to apply reloaded player settings")
				return
			}
			logger.Log.Info().Msg("Player settings reloaded from config file")
		})
		if err != nil {
			return err
		}
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("failed to watch config file: %w", err)
		}
		defer func() { _ = watcher.Stop() }()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		controller.Close()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Log.Info().Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func openDatabase(cfg config.DatabaseConfig) (*db.DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	database, err := db.New(cfg.Path)
	if err != nil {
		return nil, err
	}

	sqlDB, err := database.SQLDB()
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	if cfg.MigrationsPath != "" {
		err = db.RunMigrationsFrom(sqlDB, cfg.MigrationsPath)
	} else {
		err = db.RunMigrations(sqlDB)
	}
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Log.Info().Str("path", cfg.Path).Msg("Database ready")
	return database, nil
}

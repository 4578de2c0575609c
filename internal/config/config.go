// Package config provides configuration management using Viper.
// It loads configuration from environment variables, .env files, and config files.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/viper"
	"github.com/stwalsh4118/playerctl/internal/overlay"
	"github.com/stwalsh4118/playerctl/internal/player"
	"github.com/stwalsh4118/playerctl/internal/timerange"
)

const (
	defaultServerPort             = 8080
	defaultServerHost             = "0.0.0.0"
	defaultReadTimeout            = 30 * time.Second
	defaultWriteTimeout           = 30 * time.Second
	defaultDatabasePath           = "./data/playerctl.db"
	defaultLogLevel               = "info"
	defaultLogPretty              = false
	defaultAutoPlay               = true
	defaultTimeUpdateInterval     = time.Second
	defaultEngineHTTPTimeout      = 10 * time.Second
	defaultReloadFailureThreshold = 3
	envPrefix                     = "PLAYERCTL"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Player   PlayerConfig   `mapstructure:"player"`
	Engine   EngineConfig   `mapstructure:"engine"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig holds catalog database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
	// MigrationsPath overrides the bundled migrations, e.g. "file://./migrations"
	MigrationsPath string `mapstructure:"migrations_path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// PlayerConfig holds the caller-mutable controller settings. They are
// reloaded while the server runs.
type PlayerConfig struct {
	MinimumDVRWindowLength time.Duration `mapstructure:"minimum_dvr_window_length"`
	LiveTolerance          time.Duration `mapstructure:"live_tolerance"`
	OverlayHidingDelay     time.Duration `mapstructure:"overlay_hiding_delay"`
	AutoPlay               bool          `mapstructure:"autoplay"`
}

// EngineConfig holds HLS engine configuration
type EngineConfig struct {
	HTTPTimeout            time.Duration `mapstructure:"http_timeout"`
	TimeUpdateInterval     time.Duration `mapstructure:"time_update_interval"`
	ReloadFailureThreshold int           `mapstructure:"reload_failure_threshold"`
	PictureInPicture       bool          `mapstructure:"picture_in_picture"`
}

// Controller converts the player section to controller settings
func (p PlayerConfig) Controller() player.Config {
	return player.Config{
		Live: timerange.LiveConfiguration{
			MinimumDVRWindowLength: p.MinimumDVRWindowLength,
			LiveTolerance:          p.LiveTolerance,
		}.Normalized(),
		OverlayHidingDelay: timerange.ClampDuration(p.OverlayHidingDelay),
		AutoPlay:           p.AutoPlay,
	}
}

// Load reads configuration from .env file, config files, environment variables, and defaults
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// default locations and tolerates a missing file.
func LoadFile(path string) (*Config, error) {
	// .env files are optional in production and CI where env vars are set directly
	_ = godotenv.Load() // nolint:errcheck // .env file is optional

	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/playerctl")
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.host", defaultServerHost)
	v.SetDefault("server.read_timeout", defaultReadTimeout)
	v.SetDefault("server.write_timeout", defaultWriteTimeout)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.path", defaultDatabasePath)
	v.SetDefault("database.migrations_path", "")

	v.SetDefault("logging.level", defaultLogLevel)
	v.SetDefault("logging.pretty", defaultLogPretty)

	v.SetDefault("player.minimum_dvr_window_length", timerange.DefaultMinimumDVRWindowLength)
	v.SetDefault("player.live_tolerance", timerange.DefaultLiveTolerance)
	v.SetDefault("player.overlay_hiding_delay", overlay.DefaultHidingDelay)
	v.SetDefault("player.autoplay", defaultAutoPlay)

	v.SetDefault("engine.http_timeout", defaultEngineHTTPTimeout)
	v.SetDefault("engine.time_update_interval", defaultTimeUpdateInterval)
	v.SetDefault("engine.reload_failure_threshold", defaultReloadFailureThreshold)
	v.SetDefault("engine.picture_in_picture", false)
}

// Validate checks that configuration values are valid. Negative player
// durations are not errors; they are clamped to zero.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("invalid read timeout: %v (must be > 0)", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("invalid write timeout: %v (must be > 0)", c.Server.WriteTimeout)
	}

	if !lo.Contains(validLogLevels, c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.Logging.Level, strings.Join(validLogLevels, ", "))
	}

	if c.Engine.HTTPTimeout <= 0 {
		return fmt.Errorf("invalid engine http timeout: %v (must be > 0)", c.Engine.HTTPTimeout)
	}
	if c.Engine.TimeUpdateInterval <= 0 {
		return fmt.Errorf("invalid engine time update interval: %v (must be > 0)", c.Engine.TimeUpdateInterval)
	}
	if c.Engine.ReloadFailureThreshold < 1 {
		return fmt.Errorf("invalid engine reload failure threshold: %d (must be >= 1)", c.Engine.ReloadFailureThreshold)
	}

	return nil
}

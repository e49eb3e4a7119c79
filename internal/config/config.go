package config

import (
	"os"
	"strconv"
	"strings"

	"tbdash/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig
	Data      DataConfig
	Database  DatabaseConfig
	Map       MapConfig
	Metrics   MetricsConfig
	Profiling ProfilingConfig
	LogLevel  string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// DataConfig holds dataset source settings
type DataConfig struct {
	File           string
	Sheet          string
	DefaultFeature string
}

// DatabaseConfig holds the optional PostgreSQL source. An empty URL means
// the dataset is read from DataConfig.File.
type DatabaseConfig struct {
	URL   string
	Table string
}

// MapConfig overrides presentation options of the rendered map
type MapConfig struct {
	ColorScale string
	Projection string
	Width      int
	Height     int
}

// MetricsConfig controls the /metrics endpoint
type MetricsConfig struct {
	Enabled bool
}

// ProfilingConfig holds performance profiling settings
type ProfilingConfig struct {
	Port    string
	Enabled bool
}

const (
	DefaultPort        = "8050"
	DefaultDataFile    = "data/who_tb_data_agg.csv"
	DefaultDataTable   = "who_tb_data_agg"
	DefaultFeatureID   = "c_newinc"
	DefaultColorScale  = "Viridis"
	DefaultProjection  = "natural earth"
	DefaultWidth       = 1200
	DefaultHeight      = 700
	DefaultPprofPort   = "6060"
	DefaultGinMode     = "release"
	DefaultLogLevelStr = "INFO"
)

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server:    *loadServerConfig(),
		Data:      *loadDataConfig(),
		Database:  *loadDatabaseConfig(),
		Map:       *loadMapConfig(),
		Metrics:   MetricsConfig{Enabled: getEnvBoolOrDefault("METRICS_ENABLED", true)},
		Profiling: *loadProfilingConfig(),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", DefaultLogLevelStr),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

// UsesDatabase reports whether the dataset comes from PostgreSQL
func (c *Config) UsesDatabase() bool {
	return c.Database.URL != ""
}

// Addr is the listen address on all interfaces
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", DefaultPort),
		GinMode: getEnvOrDefault("GIN_MODE", DefaultGinMode),
	}
}

func loadDataConfig() *DataConfig {
	return &DataConfig{
		File:           getEnvOrDefault("DATA_FILE", DefaultDataFile),
		Sheet:          getEnvOrDefault("DATA_SHEET", ""),
		DefaultFeature: getEnvOrDefault("DEFAULT_FEATURE", DefaultFeatureID),
	}
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URL:   getEnvOrDefault("DATABASE_URL", ""),
		Table: getEnvOrDefault("DATA_TABLE", DefaultDataTable),
	}
}

func loadMapConfig() *MapConfig {
	return &MapConfig{
		ColorScale: getEnvOrDefault("MAP_COLOR_SCALE", DefaultColorScale),
		Projection: getEnvOrDefault("MAP_PROJECTION", DefaultProjection),
		Width:      getEnvIntOrDefault("MAP_WIDTH", DefaultWidth),
		Height:     getEnvIntOrDefault("MAP_HEIGHT", DefaultHeight),
	}
}

func loadProfilingConfig() *ProfilingConfig {
	return &ProfilingConfig{
		Port:    getEnvOrDefault("PPROF_PORT", DefaultPprofPort),
		Enabled: getEnvBoolOrDefault("PPROF_ENABLED", false),
	}
}

func validateConfig(config *Config) error {
	if _, err := strconv.Atoi(config.Server.Port); err != nil {
		return errors.ConfigInvalid("PORT must be numeric, got " + config.Server.Port)
	}
	if !config.UsesDatabase() && strings.TrimSpace(config.Data.File) == "" {
		return errors.ConfigInvalid("DATA_FILE is required when DATABASE_URL is not set")
	}
	if config.UsesDatabase() && strings.TrimSpace(config.Database.Table) == "" {
		return errors.ConfigInvalid("DATA_TABLE is required when DATABASE_URL is set")
	}
	if config.Map.Width <= 0 || config.Map.Height <= 0 {
		return errors.ConfigInvalid("MAP_WIDTH and MAP_HEIGHT must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

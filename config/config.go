// Package config loads server configuration and the YAML roster and
// parameter files read by the CLI and the server's seeding step.
//
// Precedence for server settings: defaults, then the optional YAML file,
// then environment variables. Command-line flags are applied by main.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Server
	Port            int           `yaml:"port"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	// StaticDir holds a built frontend served at /.
	StaticDir string `yaml:"static_dir"`

	// Storage
	DBPath string `yaml:"db_path"`
	// SeedFile is a roster YAML loaded into an empty store on startup.
	SeedFile string `yaml:"seed_file"`

	// Calculation
	Workers int `yaml:"workers"`

	// Observability
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// Parameters is the initial parameter set used while the store has none.
	Parameters *ParametersFile `yaml:"parameters,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:            8080,
		LogLevel:        "info",
		ShutdownTimeout: 15 * time.Second,
		DBPath:          "bonus.db",
		Workers:         4,
		StaticDir:       "./web/dist",
	}
}

// Load builds the configuration from defaults, the YAML file at path (when
// path is not empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvInt("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
	c.StaticDir = getEnv("STATIC_DIR", c.StaticDir)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.SeedFile = getEnv("SEED_FILE", c.SeedFile)
	c.Workers = getEnvInt("WORKERS", c.Workers)
	c.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative: %d", c.Workers)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

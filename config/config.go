// Package config loads server and CLI configuration from YAML, .env and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            int      `yaml:"port"`
		ShutdownSeconds int      `yaml:"shutdown_seconds"`
		AllowedOrigins  []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address          string `yaml:"address"`
		Password         string `yaml:"password"`
		DB               int    `yaml:"db"`
		ReportTTLMinutes int    `yaml:"report_ttl_minutes"`
	} `yaml:"redis"`

	Monitoring struct {
		PrometheusEnabled bool   `yaml:"prometheus_enabled"`
		Namespace         string `yaml:"namespace"`
	} `yaml:"monitoring"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	Warmer struct {
		Enabled         bool `yaml:"enabled"`
		IntervalMinutes int  `yaml:"interval_minutes"`
	} `yaml:"warmer"`
}

// Load reads path (optional; "" skips the file), expands ${ENV_VAR}
// placeholders, applies WAGE_* overrides and fills defaults. A .env file in
// the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		// Support ${ENV_VAR} placeholders in YAML config.
		data = []byte(os.ExpandEnv(string(data)))

		if err = yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("WAGE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WAGE_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("WAGE_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("WAGE_REDIS_ADDR"); v != "" {
		c.Redis.Address = v
	}
	if v := os.Getenv("WAGE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownSeconds <= 0 {
		c.Server.ShutdownSeconds = 30
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/wage.db"
	}
	if c.Monitoring.Namespace == "" {
		c.Monitoring.Namespace = "wage"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownSeconds) * time.Second
}

// ReportTTL is how long a cached monthly report lives in Redis.
func (c *Config) ReportTTL() time.Duration {
	if c.Redis.ReportTTLMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Redis.ReportTTLMinutes) * time.Minute
}

// WarmerInterval is the report warmer tick.
func (c *Config) WarmerInterval() time.Duration {
	if c.Warmer.IntervalMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.Warmer.IntervalMinutes) * time.Minute
}

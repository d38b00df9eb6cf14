package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port           int           `envconfig:"PORT" default:"8080"`
	DatabaseURL    string        `envconfig:"DATABASE_URL"`
	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	AssetDir       string        `envconfig:"ASSET_DIR" default:"./data/assets"`
	PublicBaseURL  string        `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`
	ExportScale    float64       `envconfig:"EXPORT_SCALE" default:"2"`
	AssetCacheSize int           `envconfig:"ASSET_CACHE_SIZE" default:"128"`
	FetchTimeout   time.Duration `envconfig:"FETCH_TIMEOUT" default:"15s"`
	MaxAssetBytes  int64         `envconfig:"MAX_ASSET_BYTES" default:"33554432"`
	AllowFiles     bool          `envconfig:"ALLOW_FILE_URLS" default:"false"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	cfg.PublicBaseURL = strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT out of range: %d", c.Port))
	}
	if c.ExportScale < 1 || c.ExportScale > 8 {
		errs = append(errs, fmt.Errorf("EXPORT_SCALE must be in [1, 8], got %v", c.ExportScale))
	}
	if c.AssetCacheSize < 1 {
		errs = append(errs, fmt.Errorf("ASSET_CACHE_SIZE must be positive, got %d", c.AssetCacheSize))
	}
	if c.MaxAssetBytes < 1 {
		errs = append(errs, fmt.Errorf("MAX_ASSET_BYTES must be positive, got %d", c.MaxAssetBytes))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SlogLevel parses LOG_LEVEL (debug, info, warn, error).
func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return l, nil
}

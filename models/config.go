package models

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for a scraping run. Values come from a
// YAML file with defaults applied for anything left unset; a handful of CLI
// flags can override fields after loading.
type Config struct {
	// Headless controls whether Chrome runs without a visible window.
	Headless bool `yaml:"headless"`

	// DetailTimeoutSec bounds a single detail-page navigation.
	DetailTimeoutSec int `yaml:"detail_timeout_sec"`
	// ListingTimeoutSec bounds a listing-page navigation, which tends to be
	// heavier than detail pages on gob.pe.
	ListingTimeoutSec int `yaml:"listing_timeout_sec"`

	// MaxListingURLs caps how many candidate URLs the general listing driver
	// may discover, bounding total run cost.
	MaxListingURLs int `yaml:"max_listing_urls"`

	// RequestsPerSecond paces detail scrapes within a driver. Zero disables
	// pacing.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	UserAgent string `yaml:"user_agent"`

	DBPath    string `yaml:"db_path"`
	OutputDir string `yaml:"output_dir"`
}

// DefaultConfig returns the configuration used when no file is provided.
func DefaultConfig() *Config {
	return &Config{
		Headless:          true,
		DetailTimeoutSec:  20,
		ListingTimeoutSec: 30,
		MaxListingURLs:    20,
		RequestsPerSecond: 0.5,
		UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		DBPath:            "tupa.db",
		OutputDir:         "results",
	}
}

// DetailTimeout returns the per-detail-page navigation bound.
func (c *Config) DetailTimeout() time.Duration {
	return time.Duration(c.DetailTimeoutSec) * time.Second
}

// ListingTimeout returns the per-listing-page navigation bound.
func (c *Config) ListingTimeout() time.Duration {
	return time.Duration(c.ListingTimeoutSec) * time.Second
}

// LoadConfig reads a YAML config file, filling unset fields with defaults.
// A missing file is not an error; the defaults are returned unchanged.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if cfg.DetailTimeoutSec <= 0 {
		cfg.DetailTimeoutSec = 20
	}
	if cfg.ListingTimeoutSec <= 0 {
		cfg.ListingTimeoutSec = 30
	}
	if cfg.MaxListingURLs <= 0 {
		cfg.MaxListingURLs = 20
	}
	return cfg, nil
}

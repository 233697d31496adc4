// Package config provides configuration loading and validation for the site
// server and edge cache.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Defaults applied by MergeWithDefaults when a field is unset.
const (
	DefaultPort           = 8001
	DefaultEdgePort       = 8080
	DefaultCachePrefix    = "santos"
	DefaultUpdateInterval = "5m"
)

// Config represents the server configuration that can be loaded from a JSON
// file. All fields are optional; environment variables and CLI flags fill the
// rest.
type Config struct {
	// API server
	Port           int      `json:"port,omitempty"`
	DatabaseURL    string   `json:"database_url,omitempty"`    // PostgreSQL connection URL
	PricingFile    string   `json:"pricing_file,omitempty"`    // YAML price table; built-in table when empty
	AllowedOrigins []string `json:"allowed_origins,omitempty"` // CORS allow-list; "*" allows any
	WebhookSecret  string   `json:"webhook_secret,omitempty"`  // Shared secret for the reviews webhook

	// Edge cache
	EdgePort       int      `json:"edge_port,omitempty"`
	Upstream       string   `json:"upstream,omitempty"`        // Origin the edge mirrors
	CacheDB        string   `json:"cache_db,omitempty"`        // SQLite path; in-memory when empty
	CachePrefix    string   `json:"cache_prefix,omitempty"`    // Cache name namespace
	UpdateInterval string   `json:"update_interval,omitempty"` // Manifest recheck period, e.g. "5m"
	ExtraPrecache  []string `json:"extra_precache,omitempty"`  // Extra URLs stored at install

	Verbose bool `json:"verbose,omitempty"`
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// ApplyEnv overrides fields from environment variables that are set.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT: %v", err)
		}
		c.Port = port
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("PRICING_FILE"); v != "" {
		c.PricingFile = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("WEBHOOK_SECRET"); v != "" {
		c.WebhookSecret = v
	}
	if v := os.Getenv("UPSTREAM_ORIGIN"); v != "" {
		c.Upstream = v
	}
	if v := os.Getenv("CACHE_DB"); v != "" {
		c.CacheDB = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks that the configuration has valid values.
// Required fields are checked by the command that needs them.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' out of range: %d", c.Port)
	}
	if c.EdgePort < 0 || c.EdgePort > 65535 {
		return fmt.Errorf("config error: 'edge_port' out of range: %d", c.EdgePort)
	}

	if c.PricingFile != "" {
		if _, err := os.Stat(c.PricingFile); os.IsNotExist(err) {
			return fmt.Errorf("config error: pricing file not found: %s", c.PricingFile)
		}
	}

	if c.Upstream != "" {
		u, err := url.Parse(c.Upstream)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("config error: 'upstream' must be an absolute URL: %s", c.Upstream)
		}
	}

	if c.UpdateInterval != "" {
		d, err := time.ParseDuration(c.UpdateInterval)
		if err != nil {
			return fmt.Errorf("config error: invalid 'update_interval': %w", err)
		}
		if d < time.Second {
			return fmt.Errorf("config error: 'update_interval' must be at least 1s, got %s", d)
		}
	}

	return nil
}

// Interval returns UpdateInterval as a duration, defaulting when unset.
func (c *Config) Interval() time.Duration {
	raw := c.UpdateInterval
	if raw == "" {
		raw = DefaultUpdateInterval
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		d, _ = time.ParseDuration(DefaultUpdateInterval)
	}
	return d
}

// MergeWithDefaults returns a new Config with empty fields filled from
// defaults, then from the package defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.PricingFile == "" {
		result.PricingFile = defaults.PricingFile
	}
	if len(result.AllowedOrigins) == 0 {
		result.AllowedOrigins = defaults.AllowedOrigins
	}
	if result.WebhookSecret == "" {
		result.WebhookSecret = defaults.WebhookSecret
	}
	if result.Upstream == "" {
		result.Upstream = defaults.Upstream
	}
	if result.CacheDB == "" {
		result.CacheDB = defaults.CacheDB
	}
	if len(result.ExtraPrecache) == 0 {
		result.ExtraPrecache = defaults.ExtraPrecache
	}

	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.Port == 0 {
		result.Port = DefaultPort
	}
	if result.EdgePort == 0 {
		result.EdgePort = defaults.EdgePort
	}
	if result.EdgePort == 0 {
		result.EdgePort = DefaultEdgePort
	}
	if result.CachePrefix == "" {
		result.CachePrefix = defaults.CachePrefix
	}
	if result.CachePrefix == "" {
		result.CachePrefix = DefaultCachePrefix
	}
	if result.UpdateInterval == "" {
		result.UpdateInterval = defaults.UpdateInterval
	}
	if result.UpdateInterval == "" {
		result.UpdateInterval = DefaultUpdateInterval
	}

	// Bools cannot distinguish unset from false; CLI flags win.

	return result
}

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	// Bind is the interface the extension bridge listens on.
	// Keep it on loopback: the bridge carries selected text and webhook credentials.
	Bind string `json:"bind,omitempty" yaml:"bind,omitempty"`

	// Port is the extension bridge port.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// DeliveryTimeoutSeconds bounds a single webhook POST (0 = default).
	DeliveryTimeoutSeconds int `json:"delivery_timeout_seconds,omitempty" yaml:"delivery_timeout_seconds,omitempty"`

	// StatsRetentionDays is how many most recent day buckets purge keeps.
	StatsRetentionDays int `json:"stats_retention_days,omitempty" yaml:"stats_retention_days,omitempty"`

	// DeliveryLogRetentionDays is how long purge keeps delivery log rows.
	DeliveryLogRetentionDays int `json:"delivery_log_retention_days,omitempty" yaml:"delivery_log_retention_days,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`

	// AllowedPaths is an allowlist of directories for stats export.
	// Paths outside ~/.painvault/exports require being in this list.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty" yaml:"allowed_paths,omitempty"`

	// AllowedOrigins lists extra browser origins (scheme://host[:port]) that
	// may send state-changing requests to the bridge. The bridge's own
	// origin and browser-extension origins are always accepted.
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" yaml:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" yaml:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty" yaml:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Bind:                     "127.0.0.1",
		Port:                     8765,
		DeliveryTimeoutSeconds:   15,
		StatsRetentionDays:       90,
		DeliveryLogRetentionDays: 30,
		LogLevel:                 "info",
	}
}

// DeliveryTimeout returns the webhook timeout as a duration.
func (c *Config) DeliveryTimeout() time.Duration {
	if c == nil || c.DeliveryTimeoutSeconds <= 0 {
		return time.Duration(DefaultConfig().DeliveryTimeoutSeconds) * time.Second
	}
	return time.Duration(c.DeliveryTimeoutSeconds) * time.Second
}

// configFiles are tried in order; the first one present wins.
var configFiles = []struct {
	name   string
	decode func([]byte, any) error
}{
	{"config.json", json.Unmarshal},
	{"config.yaml", yaml.Unmarshal},
	{"config.yml", yaml.Unmarshal},
}

// Load reads the first config file found in baseDir over DefaultConfig.
// No file at all yields the defaults. Tests pass t.TempDir() as baseDir.
func Load(baseDir string) (*Config, error) {
	for _, f := range configFiles {
		path := filepath.Join(baseDir, f.name)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		overlay := &Config{}
		if err := f.decode(data, overlay); err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		return Merge(DefaultConfig(), overlay), nil
	}
	return DefaultConfig(), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.Bind = firstString(overlay.Bind, base.Bind)
	result.LogLevel = firstString(overlay.LogLevel, base.LogLevel)

	result.Port = firstInt(overlay.Port, base.Port)
	result.DeliveryTimeoutSeconds = firstInt(overlay.DeliveryTimeoutSeconds, base.DeliveryTimeoutSeconds)
	result.StatsRetentionDays = firstInt(overlay.StatsRetentionDays, base.StatsRetentionDays)
	result.DeliveryLogRetentionDays = firstInt(overlay.DeliveryLogRetentionDays, base.DeliveryLogRetentionDays)
	result.DBMaxOpenConns = firstInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns)
	result.DBMaxIdleConns = firstInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns)

	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.AllowedOrigins = mergeStringSlice(base.AllowedOrigins, overlay.AllowedOrigins)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func firstString(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return strings.TrimSpace(overlay)
	}
	return base
}

func firstInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice concatenates a and b, trimming entries and dropping
// blanks and repeats. It returns nil when nothing is left.
func mergeStringSlice(a, b []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, s := range slices.Concat(a, b) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

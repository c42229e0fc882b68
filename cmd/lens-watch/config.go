// ABOUTME: Configuration loading for the lens-watch ingestion daemon
// ABOUTME: Loads TOML config from XDG path with environment variable expansion

package main

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults applied when the config leaves a knob unset.
const (
	defaultSettle     = 2 * time.Second
	defaultDedupeTTL  = 24 * time.Hour
	defaultMaxEntries = 10000
)

type Config struct {
	Backend BackendConfig `toml:"backend"`
	Watch   WatchConfig   `toml:"watch"`
	Dedupe  DedupeConfig  `toml:"dedupe"`
	Logging LoggingConfig `toml:"logging"`
}

type BackendConfig struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
}

type WatchConfig struct {
	Dirs       []string `toml:"dirs"`
	Extensions []string `toml:"extensions"`

	// Settle is how long a file must sit quiet before upload
	Settle time.Duration `toml:"-"`

	// SettleRaw is parsed into Settle ("2s", "500ms")
	SettleRaw string `toml:"settle"`
}

type DedupeConfig struct {
	MaxEntries int `toml:"max_entries"`

	// TTL is how long an uploaded file version is remembered
	TTL time.Duration `toml:"-"`

	// TTLRaw is parsed into TTL ("24h", "30m")
	TTLRaw string `toml:"ttl"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

// Load reads config from the given path, expanding environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables (${VAR} syntax)
	expanded := expandEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// parseDurations converts the raw duration strings and applies defaults.
func parseDurations(cfg *Config) error {
	cfg.Watch.Settle = defaultSettle
	if cfg.Watch.SettleRaw != "" {
		d, err := time.ParseDuration(cfg.Watch.SettleRaw)
		if err != nil {
			return fmt.Errorf("watch.settle: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("watch.settle must not be negative")
		}
		cfg.Watch.Settle = d
	}

	cfg.Dedupe.TTL = defaultDedupeTTL
	if cfg.Dedupe.TTLRaw != "" {
		d, err := time.ParseDuration(cfg.Dedupe.TTLRaw)
		if err != nil {
			return fmt.Errorf("dedupe.ttl: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("dedupe.ttl must be positive")
		}
		cfg.Dedupe.TTL = d
	}

	if cfg.Dedupe.MaxEntries <= 0 {
		cfg.Dedupe.MaxEntries = defaultMaxEntries
	}

	return nil
}

// Validate checks that required config fields are present and valid.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	u, err := url.Parse(c.Backend.URL)
	if err != nil {
		return fmt.Errorf("backend.url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend.url must use http or https scheme")
	}
	if len(c.Watch.Dirs) == 0 {
		return fmt.Errorf("watch.dirs is required")
	}
	for _, dir := range c.Watch.Dirs {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("watch.dirs must not contain empty entries")
		}
	}
	return nil
}

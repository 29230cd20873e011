// Package config loads and validates runtime configuration: environment
// variables (with an optional .env file) for process-wide settings, and a
// YAML file for the per-source polling entries.
// Fail-fast: if a required variable is missing, startup errors out.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"flatwatch/internal/filter"
	"flatwatch/internal/model"
)

// Config holds all runtime configuration for the monitor.
type Config struct {
	DatabaseURL    string
	RedisURL       string // optional; enables the fingerprint fast-path cache
	TelegramToken  string // optional; notifications go to the log when unset
	TelegramChatID string

	MaxPrice int64 // 0 disables the price ceiling
	MinRooms int   // 0 disables the rooms floor

	HTTPAddr       string
	SourcesPath    string
	CheckInterval  time.Duration // default per-source interval
	ReloadInterval time.Duration
	Retention      time.Duration // 0 disables the purge job
	CacheTTL       time.Duration
}

// Load reads the .env file (when present) and environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	maxPrice, err := envInt64("MAX_PRICE", 30_000)
	if err != nil {
		return nil, err
	}
	minRooms, err := envInt64("MIN_ROOMS", 0)
	if err != nil {
		return nil, err
	}
	checkInterval, err := envDuration("CHECK_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	reloadInterval, err := envDuration("RELOAD_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}
	retentionDays, err := envInt64("RETENTION_DAYS", 0)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := envDuration("CACHE_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	sourcesPath := os.Getenv("SOURCES_PATH")
	if sourcesPath == "" {
		sourcesPath = "sources.yaml"
	}

	return &Config{
		DatabaseURL:    dbURL,
		RedisURL:       os.Getenv("REDIS_URL"),
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: os.Getenv("TELEGRAM_CHANNEL_ID"),
		MaxPrice:       maxPrice,
		MinRooms:       int(minRooms),
		HTTPAddr:       httpAddr,
		SourcesPath:    sourcesPath,
		CheckInterval:  checkInterval,
		ReloadInterval: reloadInterval,
		Retention:      time.Duration(retentionDays) * 24 * time.Hour,
		CacheTTL:       cacheTTL,
	}, nil
}

// Criteria builds the filter criteria from the loaded settings.
func (c *Config) Criteria() filter.Criteria {
	var crit filter.Criteria
	if c.MaxPrice > 0 {
		p := c.MaxPrice
		crit.MaxPrice = &p
	}
	if c.MinRooms > 0 {
		r := c.MinRooms
		crit.MinRooms = &r
	}
	return crit
}

// sourceYAML mirrors one entry in the sources file. Durations are strings
// ("5m", "90s") parsed with time.ParseDuration.
type sourceYAML struct {
	ID          string `yaml:"id"`
	Kind        string `yaml:"kind"`
	URL         string `yaml:"url"`
	Interval    string `yaml:"interval"`
	Enabled     *bool  `yaml:"enabled"`
	Fingerprint string `yaml:"fingerprint"`
	Browser     bool   `yaml:"browser"`
	MaxItems    int    `yaml:"max_items"`
	MinDelay    string `yaml:"min_delay"`
}

type sourcesYAML struct {
	Sources []sourceYAML `yaml:"sources"`
}

// LoadSources parses the per-source YAML file. defaultInterval applies to
// entries that omit their own interval; enabled defaults to true.
func LoadSources(path string, defaultInterval time.Duration) ([]model.SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var raw sourcesYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}
	if len(raw.Sources) == 0 {
		return nil, fmt.Errorf("sources file %q defines no sources", path)
	}

	seen := make(map[string]bool)
	configs := make([]model.SourceConfig, 0, len(raw.Sources))
	for i, s := range raw.Sources {
		if s.ID == "" || s.Kind == "" || s.URL == "" {
			return nil, fmt.Errorf("source %d: id, kind and url are required", i)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("duplicate source id %q", s.ID)
		}
		seen[s.ID] = true

		interval := defaultInterval
		if s.Interval != "" {
			interval, err = time.ParseDuration(s.Interval)
			if err != nil || interval <= 0 {
				return nil, fmt.Errorf("source %s: bad interval %q", s.ID, s.Interval)
			}
		}

		var minDelay time.Duration
		if s.MinDelay != "" {
			minDelay, err = time.ParseDuration(s.MinDelay)
			if err != nil || minDelay < 0 {
				return nil, fmt.Errorf("source %s: bad min_delay %q", s.ID, s.MinDelay)
			}
		}

		enabled := true
		if s.Enabled != nil {
			enabled = *s.Enabled
		}

		configs = append(configs, model.SourceConfig{
			ID:          s.ID,
			Kind:        s.Kind,
			URL:         s.URL,
			Interval:    interval,
			Enabled:     enabled,
			Fingerprint: s.Fingerprint,
			Browser:     s.Browser,
			MaxItems:    s.MaxItems,
			MinDelay:    minDelay,
		})
	}
	return configs, nil
}

func envInt64(key string, fallback int64) (int64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, s)
	}
	return v, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, s)
	}
	return v, nil
}

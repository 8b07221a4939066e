// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and environment variables over those defaults.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath points at the SQLite database. Empty keeps everything in memory.
	DBPath string `koanf:"db_path"`

	// TopN is the eligibility cap for items with LimitToTopN and the
	// dashboard display limit.
	TopN int `koanf:"top_n"`

	// LookaheadWindow is the rank window shown on a player profile.
	LookaheadWindow int `koanf:"lookahead_window"`

	// MaxHistoryLimit caps GET /history?limit.
	MaxHistoryLimit int `koanf:"max_history_limit"`

	// WorklistCapacity bounds the distribution worklist.
	WorklistCapacity int `koanf:"worklist_capacity"`

	// DedupeSize sets the size of the request id cache.
	DedupeSize int `koanf:"dedupe_size"`

	// AdminToken gates write endpoints. Empty disables the gate.
	AdminToken string `koanf:"admin_token"`

	// RaidName is stamped on every ledger event.
	RaidName string `koanf:"raid_name"`

	// HistoryTimezone is the IANA zone used to interpret history date filters.
	HistoryTimezone string `koanf:"history_timezone"`

	// LiveBuffer is the per-subscriber buffer of the live change feed.
	LiveBuffer int `koanf:"live_buffer"`

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		TopN:             5,
		LookaheadWindow:  5,
		MaxHistoryLimit:  500,
		WorklistCapacity: 256,
		DedupeSize:       50_000,
		RaidName:         "Guild Raid",
		HistoryTimezone:  "UTC",
		LiveBuffer:       64,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.TopN <= 0:
		return fmt.Errorf("%w: top_n must be positive, got %d", ErrInvalidConfig, c.TopN)
	case c.LookaheadWindow <= 0:
		return fmt.Errorf("%w: lookahead_window must be positive, got %d", ErrInvalidConfig, c.LookaheadWindow)
	case c.MaxHistoryLimit <= 0:
		return fmt.Errorf("%w: max_history_limit must be positive, got %d", ErrInvalidConfig, c.MaxHistoryLimit)
	case c.WorklistCapacity <= 0:
		return fmt.Errorf("%w: worklist_capacity must be positive, got %d", ErrInvalidConfig, c.WorklistCapacity)
	case c.LiveBuffer <= 0:
		return fmt.Errorf("%w: live_buffer must be positive, got %d", ErrInvalidConfig, c.LiveBuffer)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves HistoryTimezone.
func (c *Config) Location() (*time.Location, error) {
	if c.HistoryTimezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.HistoryTimezone)
	if err != nil {
		return nil, fmt.Errorf("%w: history_timezone %q: %v", ErrInvalidConfig, c.HistoryTimezone, err)
	}
	return loc, nil
}

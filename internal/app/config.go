package app

import (
	"errors"
	"fmt"
	"slices"
)

// Config holds the settings that come from the command line and the
// environment rather than from the session file.
type Config struct {
	// ConfigPaths are .hcl files or folders, merged in order.
	ConfigPaths []string

	LogFormat string
	LogLevel  string

	// The fields below override the session file when set.
	Executable  string
	RunDir      string
	StatusPort  int
	JournalPath string
	ProgressURL string
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.ConfigPaths) == 0 {
		return nil, errors.New("at least one configuration path is required")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if !slices.Contains(LogLevels, cfg.LogLevel) {
		return nil, fmt.Errorf("invalid log level %q, want one of %v", cfg.LogLevel, LogLevels)
	}
	if !slices.Contains(LogFormats, cfg.LogFormat) {
		return nil, fmt.Errorf("invalid log format %q, want one of %v", cfg.LogFormat, LogFormats)
	}
	if cfg.StatusPort < 0 {
		return nil, fmt.Errorf("invalid status port %d", cfg.StatusPort)
	}
	return &cfg, nil
}

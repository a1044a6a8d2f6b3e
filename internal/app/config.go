package app

import (
	"errors"
	"time"
)

// Config holds everything an App instance needs to run.
type Config struct {
	// ManifestPath is a .hcl manifest file or a directory of them.
	ManifestPath string
	// Targets are the requested top-level packages. Empty means all.
	Targets []string

	OutputDir  string
	StagingDir string
	// KeepStaging retains the staging trees after the run for debugging.
	KeepStaging bool

	Workers       int
	FetchAttempts int
	FetchBackoff  time.Duration
	BuildTimeout  time.Duration

	LogFormat string
	LogLevel  string
}

// NewConfig validates a Config and applies defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ManifestPath == "" {
		return nil, errors.New("ManifestPath is a required configuration field and cannot be empty")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "out"
	}
	return &cfg, nil
}

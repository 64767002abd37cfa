/*
Package config handles loading and saving reelfeed configuration.

Configuration is layered with koanf: built-in defaults, then an optional YAML
file (~/.reelfeed/config.yaml or the path in REELFEED_CONFIG), then REELFEED_*
environment variables.

Schema:

	log:
	  level: info
	  format: console
	storage:
	  driver: sqlite        # sqlite, badger or memory
	  path: ""              # defaults to ~/.reelfeed/state.db
	catalog:
	  path: ""              # JSON catalog; empty uses the built-in sample
	  index_path: ""        # bleve index directory; empty keeps it in memory
	  breaker:
	    max_requests: 1
	    interval: 1m
	    timeout: 30s
	    failure_threshold: 3
	queue:
	  batch_size: 10
	  prefetch_threshold: 3
	  window: 5
	learning:
	  max_interactions: 200
	  journal:
	    path: ""            # JSONL view journal; empty disables it
	    max_size_mb: 10
	    max_backups: 3
	    compress: true
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config represents the root configuration structure.
type Config struct {
	Log      LogConfig      `koanf:"log"`
	Storage  StorageConfig  `koanf:"storage"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	Queue    QueueConfig    `koanf:"queue"`
	Learning LearningConfig `koanf:"learning"`
}

// LogConfig configures the zerolog logger.
type LogConfig struct {
	// Level is trace, debug, info, warn, error or disabled.
	Level string `koanf:"level"`

	// Format is console or json.
	Format string `koanf:"format"`
}

// StorageConfig selects the persistence backend for viewer history.
type StorageConfig struct {
	// Driver is sqlite, badger or memory.
	Driver string `koanf:"driver"`

	// Path is the database file or directory. Empty uses the default location.
	Path string `koanf:"path"`
}

// CatalogConfig locates the item catalog.
type CatalogConfig struct {
	// Path is a JSON catalog file. Empty uses the built-in sample catalog.
	Path string `koanf:"path"`

	// IndexPath persists the search index. Empty keeps it in memory.
	IndexPath string `koanf:"index_path"`

	Breaker BreakerConfig `koanf:"breaker"`
}

// BreakerConfig tunes the circuit breaker in front of the catalog source.
type BreakerConfig struct {
	MaxRequests      uint32        `koanf:"max_requests"`
	Interval         time.Duration `koanf:"interval"`
	Timeout          time.Duration `koanf:"timeout"`
	FailureThreshold uint32        `koanf:"failure_threshold"`
}

// QueueConfig tunes the feed queue.
type QueueConfig struct {
	BatchSize         int `koanf:"batch_size"`
	PrefetchThreshold int `koanf:"prefetch_threshold"`
	Window            int `koanf:"window"`
}

// LearningConfig tunes the interaction store.
type LearningConfig struct {
	MaxInteractions int           `koanf:"max_interactions"`
	Journal         JournalConfig `koanf:"journal"`
}

// JournalConfig configures the rotating view journal.
type JournalConfig struct {
	Path       string `koanf:"path"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	Compress   bool   `koanf:"compress"`
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Storage: StorageConfig{
			Driver: "sqlite",
		},
		Catalog: CatalogConfig{
			Breaker: BreakerConfig{
				MaxRequests:      1,
				Interval:         time.Minute,
				Timeout:          30 * time.Second,
				FailureThreshold: 3,
			},
		},
		Queue: QueueConfig{
			BatchSize:         10,
			PrefetchThreshold: 3,
			Window:            5,
		},
		Learning: LearningConfig{
			MaxInteractions: 200,
			Journal: JournalConfig{
				MaxSizeMB:  10,
				MaxBackups: 3,
				Compress:   true,
			},
		},
	}
}

// GetDefaultConfigPath returns the path to ~/.reelfeed/config.yaml
func GetDefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".reelfeed", "config.yaml"), nil
}

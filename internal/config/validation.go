package config

import (
	"errors"
	"fmt"
	"slices"
)

var (
	validDrivers    = []string{"sqlite", "badger", "memory"}
	validLogLevels  = []string{"trace", "debug", "info", "warn", "error", "disabled"}
	validLogFormats = []string{"console", "json"}
)

// Validate checks every section and joins the problems found.
func (c *Config) Validate() error {
	return errors.Join(
		c.Log.Validate(),
		c.Storage.Validate(),
		c.Catalog.Validate(),
		c.Queue.Validate(),
		c.Learning.Validate(),
	)
}

// Validate checks the log level and format.
func (c LogConfig) Validate() error {
	if !slices.Contains(validLogLevels, c.Level) {
		return fmt.Errorf("log.level: %q is not one of %v", c.Level, validLogLevels)
	}
	if !slices.Contains(validLogFormats, c.Format) {
		return fmt.Errorf("log.format: %q is not one of %v", c.Format, validLogFormats)
	}
	return nil
}

// Validate checks the storage driver.
func (c StorageConfig) Validate() error {
	if !slices.Contains(validDrivers, c.Driver) {
		return fmt.Errorf("storage.driver: %q is not one of %v", c.Driver, validDrivers)
	}
	return nil
}

// Validate checks the breaker settings.
func (c CatalogConfig) Validate() error {
	b := c.Breaker
	if b.FailureThreshold == 0 {
		return errors.New("catalog.breaker.failure_threshold: must be positive")
	}
	if b.Timeout <= 0 {
		return errors.New("catalog.breaker.timeout: must be positive")
	}
	if b.Interval < 0 {
		return errors.New("catalog.breaker.interval: must not be negative")
	}
	return nil
}

// Validate checks the queue sizes.
func (c QueueConfig) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("queue.batch_size: must be positive, got %d", c.BatchSize)
	}
	if c.PrefetchThreshold <= 0 {
		return fmt.Errorf("queue.prefetch_threshold: must be positive, got %d", c.PrefetchThreshold)
	}
	if c.Window <= 0 {
		return fmt.Errorf("queue.window: must be positive, got %d", c.Window)
	}
	return nil
}

// Validate checks the interaction cap and journal rotation.
func (c LearningConfig) Validate() error {
	if c.MaxInteractions <= 0 {
		return fmt.Errorf("learning.max_interactions: must be positive, got %d", c.MaxInteractions)
	}
	if c.Journal.MaxSizeMB < 0 || c.Journal.MaxBackups < 0 {
		return errors.New("learning.journal: rotation limits must not be negative")
	}
	return nil
}

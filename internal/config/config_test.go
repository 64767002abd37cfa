package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestNewConfigIsValid(t *testing.T) {
	cfg := NewConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Queue.BatchSize != 10 || cfg.Queue.PrefetchThreshold != 3 || cfg.Queue.Window != 5 {
		t.Errorf("unexpected queue defaults: %+v", cfg.Queue)
	}
	if cfg.Learning.MaxInteractions != 200 {
		t.Errorf("expected 200 interactions, got %d", cfg.Learning.MaxInteractions)
	}
}

func TestLoadFromDefaultsOnly(t *testing.T) {
	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("expected sqlite driver, got %q", cfg.Storage.Driver)
	}
	if cfg.Catalog.Breaker.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", cfg.Catalog.Breaker.Timeout)
	}
}

func TestLoadFromFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, `
storage:
  driver: badger
catalog:
  breaker:
    timeout: 5s
queue:
  batch_size: 4
learning:
  journal:
    path: /tmp/views.jsonl
`)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Storage.Driver != "badger" {
		t.Errorf("expected badger, got %q", cfg.Storage.Driver)
	}
	if cfg.Catalog.Breaker.Timeout != 5*time.Second {
		t.Errorf("expected 5s, got %v", cfg.Catalog.Breaker.Timeout)
	}
	if cfg.Queue.BatchSize != 4 {
		t.Errorf("expected batch size 4, got %d", cfg.Queue.BatchSize)
	}
	// Unset keys keep their defaults.
	if cfg.Queue.Window != 5 {
		t.Errorf("expected default window, got %d", cfg.Queue.Window)
	}
	if cfg.Learning.Journal.Path != "/tmp/views.jsonl" || cfg.Learning.Journal.MaxBackups != 3 {
		t.Errorf("unexpected journal config: %+v", cfg.Learning.Journal)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, path, "queue:\n  batch_size: 4\n")

	t.Setenv("REELFEED_QUEUE_BATCH_SIZE", "25")
	t.Setenv("REELFEED_STORAGE_DRIVER", "memory")
	t.Setenv("REELFEED_CATALOG_BREAKER_FAILURE_THRESHOLD", "7")
	t.Setenv("REELFEED_LEARNING_JOURNAL_COMPRESS", "false")
	t.Setenv("REELFEED_UNRELATED", "ignored")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Queue.BatchSize != 25 {
		t.Errorf("expected env batch size 25, got %d", cfg.Queue.BatchSize)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("expected memory driver, got %q", cfg.Storage.Driver)
	}
	if cfg.Catalog.Breaker.FailureThreshold != 7 {
		t.Errorf("expected threshold 7, got %d", cfg.Catalog.Breaker.FailureThreshold)
	}
	if cfg.Learning.Journal.Compress {
		t.Error("expected compress disabled by env")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"REELFEED_LOG_LEVEL":                    "log.level",
		"REELFEED_STORAGE_PATH":                 "storage.path",
		"REELFEED_CATALOG_INDEX_PATH":           "catalog.index_path",
		"REELFEED_CATALOG_BREAKER_TIMEOUT":      "catalog.breaker.timeout",
		"REELFEED_LEARNING_MAX_INTERACTIONS":    "learning.max_interactions",
		"REELFEED_LEARNING_JOURNAL_MAX_SIZE_MB": "learning.journal.max_size_mb",
		"REELFEED_CONFIG":                       "",
		"REELFEED_SOMETHING":                    "",
	}

	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadUsesConfigEnvVar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, path, "log:\n  level: debug\n")
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected debug level, got %q", cfg.Log.Level)
	}
}

func TestLoadWithoutDefaultFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(ConfigPathEnvVar, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("missing default file should not be an error: %v", err)
	}
	if cfg.Queue.BatchSize != 10 {
		t.Errorf("expected defaults, got %+v", cfg.Queue)
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("config_not_found_has_hint", func(t *testing.T) {
		_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))

		var notFound *ConfigNotFoundError
		if !errors.As(err, &notFound) {
			t.Fatalf("expected ConfigNotFoundError, got %v", err)
		}
		if !strings.Contains(err.Error(), "config init") {
			t.Errorf("error should mention config init, got: %v", err)
		}
	})

	t.Run("invalid_yaml_mentions_backup", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		writeFile(t, path, "queue: [unclosed")

		_, err := LoadFrom(path)
		var invalid *InvalidConfigError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected InvalidConfigError, got %v", err)
		}
		if !strings.Contains(err.Error(), ".bak") {
			t.Errorf("error should mention backup, got: %v", err)
		}
	})

	t.Run("invalid_value_fails_validation", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		writeFile(t, path, "storage:\n  driver: postgres\nqueue:\n  window: 0\n")

		_, err := LoadFrom(path)
		if err == nil {
			t.Fatal("expected validation error")
		}
		if !strings.Contains(err.Error(), "storage.driver") || !strings.Contains(err.Error(), "queue.window") {
			t.Errorf("expected both problems reported, got: %v", err)
		}
		var invalid *InvalidConfigError
		if !errors.As(err, &invalid) || invalid.Err == nil {
			t.Fatalf("expected InvalidConfigError wrapping the validation error, got %v", err)
		}
		if !strings.Contains(invalid.Err.Error(), "queue.window") {
			t.Errorf("wrapped error should carry the validation message, got: %v", invalid.Err)
		}
	})
}

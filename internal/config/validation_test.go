package config

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad driver", func(c *Config) { c.Storage.Driver = "redis" }, "storage.driver"},
		{"memory driver", func(c *Config) { c.Storage.Driver = "memory" }, ""},
		{"zero breaker threshold", func(c *Config) { c.Catalog.Breaker.FailureThreshold = 0 }, "failure_threshold"},
		{"zero breaker timeout", func(c *Config) { c.Catalog.Breaker.Timeout = 0 }, "breaker.timeout"},
		{"negative interval", func(c *Config) { c.Catalog.Breaker.Interval = -1 }, "breaker.interval"},
		{"zero batch", func(c *Config) { c.Queue.BatchSize = 0 }, "queue.batch_size"},
		{"zero threshold", func(c *Config) { c.Queue.PrefetchThreshold = 0 }, "queue.prefetch_threshold"},
		{"zero window", func(c *Config) { c.Queue.Window = 0 }, "queue.window"},
		{"zero interactions", func(c *Config) { c.Learning.MaxInteractions = 0 }, "learning.max_interactions"},
		{"negative backups", func(c *Config) { c.Learning.Journal.MaxBackups = -1 }, "learning.journal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	perm := &PermissionError{Path: "/etc/reelfeed.yaml", Op: "write", Fix: "Run: chmod u+w /etc/reelfeed.yaml", Details: "Config file is read-only"}
	msg := perm.Error()
	for _, want := range []string{"permission denied", "cannot write", "read-only", "chmod"} {
		if !strings.Contains(msg, want) {
			t.Errorf("permission error missing %q: %s", want, msg)
		}
	}

	invalid := &InvalidConfigError{Path: "c.yaml", Message: "queue.window: must be positive", Hint: "Fix it"}
	if !strings.Contains(invalid.Error(), "queue.window") || !strings.Contains(invalid.Error(), "Fix it") {
		t.Errorf("unexpected invalid config message: %s", invalid.Error())
	}

	parseErr := errors.New("yaml: line 1")
	wrapped := &InvalidConfigError{Path: "c.yaml", Message: parseErr.Error(), Err: parseErr}
	if !errors.Is(wrapped, parseErr) {
		t.Error("InvalidConfigError should unwrap to its cause")
	}
	if !strings.Contains(wrapped.Error(), "invalid reelfeed config: c.yaml") {
		t.Errorf("unexpected invalid config header: %s", wrapped.Error())
	}

	notFound := &ConfigNotFoundError{Path: "c.yaml", Hint: "Run 'reelfeed config init'"}
	if !strings.Contains(notFound.Error(), "reelfeed config not found: c.yaml") {
		t.Errorf("unexpected not found message: %s", notFound.Error())
	}
}

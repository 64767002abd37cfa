package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "REELFEED_"

	// ConfigPathEnvVar overrides the config file location.
	ConfigPathEnvVar = "REELFEED_CONFIG"
)

// envSections maps env key prefixes (after EnvPrefix, lowercased) to config
// paths. Nested sections come first so the longest prefix wins.
var envSections = []struct {
	prefix string
	path   string
}{
	{"catalog_breaker_", "catalog.breaker."},
	{"learning_journal_", "learning.journal."},
	{"log_", "log."},
	{"storage_", "storage."},
	{"catalog_", "catalog."},
	{"queue_", "queue."},
	{"learning_", "learning."},
}

// Load reads the configuration from path, or from the default location when
// path is empty. A missing default file is not an error; a missing explicit
// file is.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = os.Getenv(ConfigPathEnvVar)
		explicit = path != ""
	}
	if !explicit {
		defaultPath, err := GetDefaultConfigPath()
		if err == nil {
			if _, statErr := os.Stat(defaultPath); statErr == nil {
				path = defaultPath
			}
		}
	}
	return LoadFrom(path)
}

// LoadFrom layers defaults, the YAML file at path (skipped when empty) and
// environment overrides, then validates the result.
func LoadFrom(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(NewConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := loadFile(k, path); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, &InvalidConfigError{
			Path:    path,
			Message: err.Error(),
			Err:     err,
			Hint:    "Check value types, e.g. durations like 30s",
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, &InvalidConfigError{
			Path:    path,
			Message: err.Error(),
			Err:     err,
			Hint:    "Fix the value or remove it to use the default",
		}
	}

	return cfg, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &ConfigNotFoundError{
				Path: path,
				Hint: "Run 'reelfeed config init' to create configuration",
			}
		}
		return fmt.Errorf("failed to access config: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return &PermissionError{
				Path:    path,
				Op:      "read",
				Fix:     getReadPermissionFix(path),
				Details: getPermissionDetails(path),
			}
		}
		return &InvalidConfigError{
			Path:    path,
			Message: fmt.Sprintf("YAML parse error: %v", err),
			Err:     err,
			Hint:    "Restore from .bak file if available",
		}
	}
	return nil
}

// envTransformFunc maps REELFEED_QUEUE_BATCH_SIZE to queue.batch_size.
// Variables outside the known sections are ignored.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	for _, s := range envSections {
		if strings.HasPrefix(key, s.prefix) {
			return s.path + strings.TrimPrefix(key, s.prefix)
		}
	}
	return ""
}

// getReadPermissionFix returns platform-specific fix command
func getReadPermissionFix(path string) string {
	switch runtime.GOOS {
	case "windows":
		return fmt.Sprintf("Right-click %s → Properties → Security → Edit permissions", path)
	default:
		return fmt.Sprintf("Run: chmod 644 %s", path)
	}
}

// getPermissionDetails reports the current file mode.
func getPermissionDetails(path string) string {
	if runtime.GOOS == "windows" {
		return ""
	}

	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("Current permissions: %04o", info.Mode().Perm())
}

package config

import (
	"fmt"
	"strings"
)

// PermissionError reports a config file or directory reelfeed cannot read or write.
type PermissionError struct {
	Path    string
	Op      string // "read" or "write"
	Fix     string // shell command that restores access
	Details string
}

func (e *PermissionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "permission denied (cannot %s config): %s\n", e.Op, e.Path)
	if e.Details != "" {
		b.WriteString(e.Details + "\n")
	}
	b.WriteString("💡 Fix: " + e.Fix)
	return b.String()
}

// ConfigNotFoundError is returned when an explicit or env-selected config
// path does not exist. The default path falls back to built-in settings
// instead.
type ConfigNotFoundError struct {
	Path string
	Hint string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("reelfeed config not found: %s\n\n💡 %s", e.Path, e.Hint)
}

// InvalidConfigError covers YAML that does not parse, values that do not
// decode into Config, and settings rejected by Validate.
type InvalidConfigError struct {
	Path    string
	Message string
	Hint    string
	Err     error
}

func (e *InvalidConfigError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid reelfeed config: %s\n", e.Path)
	if e.Message != "" {
		b.WriteString(e.Message + "\n")
	}
	if e.Hint != "" {
		b.WriteString("💡 " + e.Hint)
	}
	return b.String()
}

// Unwrap exposes the parse or validation error.
func (e *InvalidConfigError) Unwrap() error { return e.Err }

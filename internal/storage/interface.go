/*
Package storage implements the key-value persistence layer used by the
learning store.

A BlobStore maps string keys to opaque byte values. Three backends are
available:

  - sqlite (default): modernc.org/sqlite, a pure Go, CGo-free implementation,
    with graceful degradation if the database is unavailable
  - badger: an embedded BadgerDB directory
  - memory: a process-local map, used by tests and ephemeral sessions

The default database lives at ~/.reelfeed/state.db.
*/
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by Get when the key has never been set or was removed.
var ErrNotFound = errors.New("storage: key not found")

// Backend drivers accepted by Open.
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
	DriverMemory = "memory"
)

// BlobStore is a string-keyed blob store.
type BlobStore interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Close releases the backend.
	Close() error
}

// DefaultDir returns ~/.reelfeed.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".reelfeed"), nil
}

// DefaultPath returns the default location for driver.
func DefaultPath(driver string) (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	switch driver {
	case DriverBadger:
		return filepath.Join(dir, "badger"), nil
	default:
		return filepath.Join(dir, "state.db"), nil
	}
}

// Open creates a BlobStore for driver at path. An empty path selects
// DefaultPath. The sqlite backend never fails to open: if the database cannot
// be initialized it degrades to a store that keeps nothing.
func Open(driver, path string) (BlobStore, error) {
	if driver == "" {
		driver = DriverSQLite
	}

	if driver != DriverMemory && path == "" {
		p, err := DefaultPath(driver)
		if err != nil {
			return nil, err
		}
		path = p
	}

	switch driver {
	case DriverSQLite:
		s := NewSQLiteStore(path)
		if err := s.Init(); err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("sqlite store disabled")
		}
		return s, nil
	case DriverBadger:
		return OpenBadgerStore(path)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

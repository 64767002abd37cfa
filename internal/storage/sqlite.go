package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/khanglvm/reelfeed/internal/logging"
)

// SQLiteStore implements BlobStore on a single SQLite table.
type SQLiteStore struct {
	db       *sql.DB
	dbPath   string
	enabled  bool
	mu       sync.Mutex
	initOnce sync.Once
	log      zerolog.Logger
}

// NewSQLiteStore creates a store for the database at dbPath. Call Init before use.
func NewSQLiteStore(dbPath string) *SQLiteStore {
	return &SQLiteStore{
		dbPath:  dbPath,
		enabled: dbPath != "",
		log:     logging.Component("storage"),
	}
}

// Init creates the database directory, opens the database and runs migrations.
//
// If initialization fails, the store is disabled and subsequent operations
// become no-ops: Get reports ErrNotFound and writes are dropped.
func (s *SQLiteStore) Init() error {
	if !s.enabled {
		return nil
	}

	var initErr error
	s.initOnce.Do(func() {
		if err := os.MkdirAll(filepath.Dir(s.dbPath), 0o755); err != nil {
			initErr = fmt.Errorf("failed to create db directory: %w", err)
			s.enabled = false
			return
		}

		db, err := sql.Open("sqlite", s.dbPath)
		if err != nil {
			initErr = fmt.Errorf("failed to open database: %w", err)
			s.enabled = false
			return
		}
		// One connection serializes writers and keeps pragmas consistent.
		db.SetMaxOpenConns(1)
		s.db = db

		if err := db.Ping(); err != nil {
			initErr = fmt.Errorf("failed to ping database: %w", err)
			s.disable()
			return
		}

		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			s.log.Debug().Err(err).Msg("WAL mode unavailable")
		}

		if err := s.runMigrations(); err != nil {
			initErr = fmt.Errorf("failed to run migrations: %w", err)
			s.disable()
			return
		}
	})

	return initErr
}

// Enabled reports whether the database is usable.
func (s *SQLiteStore) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled && s.db != nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.db = nil
	s.enabled = false
	return nil
}

func (s *SQLiteStore) disable() {
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
	s.enabled = false
}

// migration represents a single database migration.
type migration struct {
	version int
	name    string
	up      func() error
}

// runMigrations executes database schema migrations.
func (s *SQLiteStore) runMigrations() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return err
	}

	var version int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return err
	}

	migrations := []migration{
		{version: 1, name: "blobs", up: s.migration001Blobs},
	}

	for _, m := range migrations {
		if version >= m.version {
			continue
		}
		s.log.Info().Int("version", m.version).Str("name", m.name).Msg("running migration")
		if err := m.up(); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
			return err
		}
	}

	return nil
}

// migration001Blobs creates the key-value table.
func (s *SQLiteStore) migration001Blobs() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS blobs (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create blobs table: %w", err)
	}
	return nil
}

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]func(t *testing.T) BlobStore {
	t.Helper()
	return map[string]func(t *testing.T) BlobStore{
		DriverSQLite: func(t *testing.T) BlobStore {
			s, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "state.db"))
			require.NoError(t, err)
			return s
		},
		DriverBadger: func(t *testing.T) BlobStore {
			s, err := Open(DriverBadger, filepath.Join(t.TempDir(), "badger"))
			require.NoError(t, err)
			return s
		},
		"badger-inmemory": func(t *testing.T) BlobStore {
			s, err := OpenBadgerStore("")
			require.NoError(t, err)
			return s
		},
		DriverMemory: func(t *testing.T) BlobStore {
			s, err := Open(DriverMemory, "")
			require.NoError(t, err)
			return s
		},
	}
}

// TestBlobStoreContract runs the same operations against every backend.
func TestBlobStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()

			_, err := s.Get(ctx, "@missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Set(ctx, "@user_interactions", []byte(`[{"itemId":"v1"}]`)))
			got, err := s.Get(ctx, "@user_interactions")
			require.NoError(t, err)
			assert.JSONEq(t, `[{"itemId":"v1"}]`, string(got))

			require.NoError(t, s.Set(ctx, "@user_interactions", []byte(`[]`)))
			got, err = s.Get(ctx, "@user_interactions")
			require.NoError(t, err)
			assert.Equal(t, "[]", string(got))

			require.NoError(t, s.Remove(ctx, "@user_interactions"))
			_, err = s.Get(ctx, "@user_interactions")
			assert.ErrorIs(t, err, ErrNotFound)

			assert.NoError(t, s.Remove(ctx, "@user_interactions"), "removing an absent key")
		})
	}
}

// TestBadgerStoreSharedDB wraps a database owned by the caller.
func TestBadgerStoreSharedDB(t *testing.T) {
	ctx := context.Background()

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("session:abc"), []byte("other data"))
	}))

	s := NewBadgerStore(db)
	require.NoError(t, s.Set(ctx, "@user_preferences", []byte(`{}`)))
	require.NoError(t, s.Close())

	// Close leaves a borrowed database open.
	again := NewBadgerStore(db)
	got, err := again.Get(ctx, "@user_preferences")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(got))

	_, err = again.Get(ctx, "session:abc")
	assert.ErrorIs(t, err, ErrNotFound, "keys outside the blob prefix are not visible")

	require.NoError(t, db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte("blob:@user_preferences"))
		return err
	}))
}

// TestSQLitePersistsAcrossReopen verifies data survives Close and a second Init.
func TestSQLitePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "nested", "state.db")

	s := NewSQLiteStore(dbPath)
	require.NoError(t, s.Init())
	require.True(t, s.Enabled())
	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	require.NoError(t, s.Close())

	_, err := os.Stat(dbPath)
	require.NoError(t, err, "database file not created")

	reopened := NewSQLiteStore(dbPath)
	require.NoError(t, reopened.Init())
	defer reopened.Close()

	got, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}

// TestSQLiteGracefulDegradation verifies behavior when the database is unavailable.
func TestSQLiteGracefulDegradation(t *testing.T) {
	ctx := context.Background()

	// A regular file where a directory is expected makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	s := NewSQLiteStore(filepath.Join(blocker, "sub", "state.db"))
	assert.Error(t, s.Init())
	assert.False(t, s.Enabled())

	assert.NoError(t, s.Set(ctx, "k", []byte("v")))
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, s.Remove(ctx, "k"))
	assert.NoError(t, s.Close())
}

// TestOpenDegradedSQLite verifies Open never fails for sqlite.
func TestOpenDegradedSQLite(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	s, err := Open(DriverSQLite, filepath.Join(blocker, "state.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("redis", "")
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	value := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", value))
	value[0] = 'z'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'z'
	again, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
	assert.Equal(t, 1, s.Len())
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("HOME", "/tmp/reelfeed-home")

	p, err := DefaultPath(DriverSQLite)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/reelfeed-home", ".reelfeed", "state.db"), p)

	p, err = DefaultPath(DriverBadger)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/reelfeed-home", ".reelfeed", "badger"), p)
}

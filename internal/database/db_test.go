package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, name string) *DB {
	t.Helper()
	db, err := New(Config{
		Path: filepath.Join(t.TempDir(), name+".db"),
		Name: name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBuildConnectionString(t *testing.T) {
	tests := []struct {
		profile DatabaseProfile
		want    string
	}{
		{ProfileLedger, "synchronous(FULL)"},
		{ProfileStandard, "synchronous(NORMAL)"},
	}
	for _, tt := range tests {
		t.Run(string(tt.profile), func(t *testing.T) {
			s := buildConnectionString("/tmp/x.db", tt.profile)
			assert.True(t, strings.HasPrefix(s, "/tmp/x.db?_pragma=journal_mode(WAL)"))
			assert.Contains(t, s, tt.want)
			assert.Contains(t, s, "foreign_keys(1)")
		})
	}

	s := buildConnectionString("file:test?mode=memory", ProfileStandard)
	assert.True(t, strings.HasPrefix(s, "file:test?mode=memory&_pragma="))
}

func TestNew_DefaultsProfile(t *testing.T) {
	db := newTestDB(t, "screener")
	assert.Equal(t, ProfileStandard, db.Profile())
	assert.Equal(t, "screener", db.Name())
	assert.True(t, filepath.IsAbs(db.Path()))
}

func TestMigrate_CreatesTables(t *testing.T) {
	db := newTestDB(t, "screener")
	require.NoError(t, db.Migrate())
	// Reapplying is a no-op
	require.NoError(t, db.Migrate())

	for _, table := range []string{"sweep_runs", "sweep_rows", "validation_reports"} {
		var name string
		err := db.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_UnknownNameSkipped(t *testing.T) {
	db := newTestDB(t, "scratch")
	require.NoError(t, db.Migrate())

	var count int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table'").Scan(&count))
	assert.Equal(t, 0, count)
}

func TestWithTransaction(t *testing.T) {
	db := newTestDB(t, "scratch")
	_, err := db.Conn().Exec("CREATE TABLE kv (k TEXT PRIMARY KEY, v INTEGER)")
	require.NoError(t, err)

	count := func() int {
		var n int
		require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM kv").Scan(&n))
		return n
	}

	t.Run("commit", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			_, err := tx.Exec("INSERT INTO kv VALUES ('a', 1)")
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, 1, count())
	})

	t.Run("rollback on error", func(t *testing.T) {
		boom := errors.New("boom")
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			if _, err := tx.Exec("INSERT INTO kv VALUES ('b', 2)"); err != nil {
				return err
			}
			return boom
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, count())
	})

	t.Run("rollback on panic", func(t *testing.T) {
		err := WithTransaction(db.Conn(), func(tx *sql.Tx) error {
			_, _ = tx.Exec("INSERT INTO kv VALUES ('c', 3)")
			panic("kaboom")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "kaboom")
		assert.Equal(t, 1, count())
	})

	t.Run("nil connection", func(t *testing.T) {
		assert.Error(t, WithTransaction(nil, func(*sql.Tx) error { return nil }))
	})
}

func TestHealthCheck(t *testing.T) {
	db := newTestDB(t, "screener")
	require.NoError(t, db.Migrate())
	assert.NoError(t, db.HealthCheck(context.Background()))
}

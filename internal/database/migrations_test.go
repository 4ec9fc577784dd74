package database

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestConfigureDatabase(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, ConfigureDatabase(db))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='saved_tweets'").Scan(&count))
	assert.Equal(t, 1, count)

	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(GetMigrations()), count)
}

func TestRunMigrationsIdempotent(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, RunMigrations(db))
	require.NoError(t, RunMigrations(db))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(GetMigrations()), count)

	version, err := getCurrentVersion(db)
	require.NoError(t, err)
	assert.Equal(t, GetMigrations()[len(GetMigrations())-1].Version, version)
}

func TestMigrationsOrdered(t *testing.T) {
	migrations := GetMigrations()
	for i := 1; i < len(migrations); i++ {
		assert.Greater(t, migrations[i].Version, migrations[i-1].Version)
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "saved.db")

	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("INSERT INTO saved_tweets (key, value) VALUES (?, ?)", "1", "{}")
	require.NoError(t, err)
}

package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBootstrapAppliesMigrationsOnce(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "nested", "library.db")

	database, err := Bootstrap(dbPath)
	require.NoError(t, err)
	require.NoError(t, RunMigrations(database))

	var count int
	require.NoError(t, database.QueryRow("SELECT COUNT(1) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)

	for _, table := range []string{"albums", "tracks", "artist_info"} {
		var name string
		err := database.QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			table,
		).Scan(&name)
		require.NoError(t, err, table)
	}

	require.NoError(t, database.Close())
}

func TestOpenEnablesForeignKeysOnEveryConnection(t *testing.T) {
	t.Parallel()

	database, err := Bootstrap(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	defer database.Close()

	database.SetMaxOpenConns(4)
	for i := 0; i < 4; i++ {
		conn, err := database.Conn(t.Context())
		require.NoError(t, err)

		var enabled int
		require.NoError(t, conn.QueryRowContext(t.Context(), "PRAGMA foreign_keys;").Scan(&enabled))
		assert.Equal(t, 1, enabled)
		defer conn.Close()
	}
}

func TestAlbumTitleArtistIsUnique(t *testing.T) {
	t.Parallel()

	database, err := Bootstrap(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	defer database.Close()

	_, err = database.Exec("INSERT INTO albums(id, title, artist) VALUES ('a', 'Album X', 'Artist A')")
	require.NoError(t, err)

	_, err = database.Exec("INSERT INTO albums(id, title, artist) VALUES ('b', 'Album X', 'Artist A')")
	assert.Error(t, err)
}

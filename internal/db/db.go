package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var pragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

func Bootstrap(dbPath string) (*sql.DB, error) {
	database, err := Open(dbPath)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(database); err != nil {
		database.Close()
		return nil, err
	}

	return database, nil
}

// Open applies pragmas through the DSN so every pooled connection gets them,
// not only the one that happened to run a PRAGMA statement.
func Open(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	database, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := database.Ping(); err != nil {
		database.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	var foreignKeys int
	if err := database.QueryRow("PRAGMA foreign_keys;").Scan(&foreignKeys); err != nil {
		database.Close()
		return nil, fmt.Errorf("read sqlite pragma foreign_keys: %w", err)
	}
	if foreignKeys != 1 {
		database.Close()
		return nil, fmt.Errorf("sqlite foreign keys are disabled for %s", dbPath)
	}

	return database, nil
}

func dsn(dbPath string) string {
	query := url.Values{}
	for _, pragma := range pragmas {
		query.Add("_pragma", pragma)
	}

	return "file:" + dbPath + "?" + query.Encode()
}

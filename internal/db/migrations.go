package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"time"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func RunMigrations(database *sql.DB) error {
	if _, err := database.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		);
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(entries)

	for _, name := range entries {
		applied, err := migrationApplied(database, name)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		if err := applyMigration(database, name); err != nil {
			return err
		}
	}

	return nil
}

func applyMigration(database *sql.DB, name string) error {
	body, err := migrationsFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}

	tx, err := database.Begin()
	if err != nil {
		return fmt.Errorf("start migration tx %s: %w", name, err)
	}

	if _, err := tx.Exec(string(body)); err != nil {
		tx.Rollback()
		return fmt.Errorf("execute migration %s: %w", name, err)
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_migrations(name, applied_at) VALUES (?, ?)",
		name,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("record migration %s: %w", name, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}

	return nil
}

func migrationApplied(database *sql.DB, name string) (bool, error) {
	var count int
	if err := database.QueryRow("SELECT COUNT(1) FROM schema_migrations WHERE name = ?", name).Scan(&count); err != nil {
		return false, fmt.Errorf("check migration %s: %w", name, err)
	}

	return count > 0, nil
}

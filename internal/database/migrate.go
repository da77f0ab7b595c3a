// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package database

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

func setupGoose() error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	return goose.SetDialect("sqlite3")
}

// RunMigrations runs all pending goose migrations.
func RunMigrations(db *sql.DB) error {
	if err := setupGoose(); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

// MigrateDown rolls back the last migration.
func MigrateDown(db *sql.DB) error {
	if err := setupGoose(); err != nil {
		return err
	}
	return goose.Down(db, "migrations")
}

// MigrateReset rolls back all migrations.
func MigrateReset(db *sql.DB) error {
	if err := setupGoose(); err != nil {
		return err
	}
	return goose.Reset(db, "migrations")
}

// Migrate applies the named migration direction: up, down or reset.
func Migrate(db *sql.DB, direction string) error {
	switch direction {
	case "", "up":
		return RunMigrations(db)
	case "down":
		return MigrateDown(db)
	case "reset":
		return MigrateReset(db)
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
}

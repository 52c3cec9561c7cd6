package database

import (
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var ledgerMigrations embed.FS

// RunMigrations brings the ledger schema up to date. A dirty schema left by
// an interrupted migration is an error.
func RunMigrations(db *DB) error {
	schema, err := iofs.New(ledgerMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load ledger migrations: %w", err)
	}

	target, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to prepare ledger for migration: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", schema, "sqlite", target)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to migrate ledger: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to read ledger schema version: %w", err)
	}
	if dirty {
		return fmt.Errorf("ledger schema version %d is dirty", version)
	}

	slog.Debug("Ledger schema ready", "version", version)
	return nil
}

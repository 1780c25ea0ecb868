package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrationStatus describes the schema version of the cart database
type MigrationStatus struct {
	Version uint
	Dirty   bool
	Applied bool
}

// Migrator runs schema migrations for the visitors table
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator binds the migration source at sourceURL to db
func NewMigrator(db *DB, sourceURL string) (*Migrator, error) {
	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}

	return &Migrator{m: m}, nil
}

// Up applies all pending migrations. It reports false when there was nothing to do.
func (mg *Migrator) Up() (bool, error) {
	return changed(mg.m.Up())
}

// Down reverts every migration
func (mg *Migrator) Down() (bool, error) {
	return changed(mg.m.Down())
}

// Steps moves n migrations forward, or backward when n is negative
func (mg *Migrator) Steps(n int) (bool, error) {
	return changed(mg.m.Steps(n))
}

// Status returns the current migration version
func (mg *Migrator) Status() (MigrationStatus, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, nil
	}
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to get migration version: %w", err)
	}
	return MigrationStatus{Version: version, Dirty: dirty, Applied: true}, nil
}

// Close releases the migration source
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

func changed(err error) (bool, error) {
	if errors.Is(err, migrate.ErrNoChange) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("migration failed: %w", err)
	}
	return true, nil
}

package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations
var migrationsFS embed.FS

// RunMigrations applies every pending up migration for the database behind dsn.
func RunMigrations(dsn string) error {
	return withMigrate(dsn, func(m *migrate.Migrate) error {
		return m.Up()
	})
}

// RollbackAll applies every down migration.
func RollbackAll(dsn string) error {
	return withMigrate(dsn, func(m *migrate.Migrate) error {
		return m.Down()
	})
}

func withMigrate(dsn string, fn func(*migrate.Migrate) error) error {
	driverName, sqlDSN, dir := "sqlite3", sqliteDSN(dsn), "migrations/sqlite"
	if IsPostgresURL(dsn) {
		driverName, sqlDSN, dir = "pgx", dsn, "migrations/postgres"
	}

	sqlDB, err := sql.Open(driverName, sqlDSN)
	if err != nil {
		return fmt.Errorf("migrate open: %w", err)
	}
	defer sqlDB.Close()

	var driver database.Driver
	if driverName == "pgx" {
		driver, err = postgres.WithInstance(sqlDB, &postgres.Config{})
	} else {
		driver, err = migratesqlite.WithInstance(sqlDB, &migratesqlite.Config{})
	}
	if err != nil {
		return fmt.Errorf("migrate driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("migrate source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driverName, driver)
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}

	if err := fn(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

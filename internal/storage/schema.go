package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/multierr"

	"ledger/internal/log"
)

//go:embed migrations/*.sql
var schemaFiles embed.FS

// upgradeSchema applies pending migrations to the ledger file at dbPath and
// returns the resulting schema version. The migrator owns the handle it is
// given, so it gets a connection of its own.
func upgradeSchema(dbPath string, logger *log.Logger) (version uint, err error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("open schema connection: %w", err)
	}
	target, err := sqlite.WithInstance(conn, &sqlite.Config{})
	if err != nil {
		conn.Close()
		return 0, fmt.Errorf("prepare schema target: %w", err)
	}
	src, err := iofs.New(schemaFiles, "migrations")
	if err != nil {
		conn.Close()
		return 0, fmt.Errorf("load schema files: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", target)
	if err != nil {
		conn.Close()
		return 0, fmt.Errorf("prepare schema upgrade: %w", err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		err = multierr.Combine(err, srcErr, dbErr)
	}()

	before, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("upgrade schema: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	if version != before {
		logger.Info("ledger schema upgraded",
			log.FieldOperation, log.OpStartup,
			"from_version", before,
			log.FieldVersion, version)
	}
	return version, nil
}

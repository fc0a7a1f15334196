package checkpoint

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// migrateUp brings the ledger schema to the latest version. The migrate
// instance is not closed because that would close db.
func migrateUp(db *sql.DB, logger *slog.Logger) error {
	m, err := newMigrate(db, logger)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate ledger up: %w", err)
	}
	return nil
}

// schemaVersion reports the applied migration version.
func schemaVersion(db *sql.DB, logger *slog.Logger) (uint, bool, error) {
	m, err := newMigrate(db, logger)
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func newMigrate(db *sql.DB, logger *slog.Logger) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("create sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}
	m.Log = migrateLogger{logger: logger}
	return m, nil
}

// migrateLogger adapts migrate.Logger to slog at debug level.
type migrateLogger struct {
	logger *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	if l.logger == nil {
		return
	}
	l.logger.Debug(fmt.Sprintf("migrate: "+format, v...))
}

func (migrateLogger) Verbose() bool { return false }

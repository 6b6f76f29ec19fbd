package migrations

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var files embed.FS

// Status is the schema version currently applied.
type Status struct {
	Version uint
	Dirty   bool
	Applied bool // false when no migration has ever run
}

func newMigrate(dsn string) (*migrate.Migrate, error) {
	src, err := iofs.New(files, "sql")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, DriverURL(dsn))
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	return m, nil
}

// DriverURL rewrites a postgres:// DSN to the pgx:// scheme the migrate driver registers.
func DriverURL(dsn string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

// Up applies all pending migrations. It returns changed=false when the schema is current.
func Up(dsn string) (changed bool, err error) {
	m, err := newMigrate(dsn)
	if err != nil {
		return false, err
	}
	defer closeMigrate(m)

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return false, nil
		}
		return false, fmt.Errorf("migrate up: %w", err)
	}
	return true, nil
}

// Down rolls back the last applied migration.
func Down(dsn string) error {
	m, err := newMigrate(dsn)
	if err != nil {
		return err
	}
	defer closeMigrate(m)

	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

func CurrentStatus(dsn string) (Status, error) {
	m, err := newMigrate(dsn)
	if err != nil {
		return Status{}, err
	}
	defer closeMigrate(m)

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return Status{}, nil
		}
		return Status{}, fmt.Errorf("migrate version: %w", err)
	}
	return Status{Version: version, Dirty: dirty, Applied: true}, nil
}

func closeMigrate(m *migrate.Migrate) {
	_, _ = m.Close()
}

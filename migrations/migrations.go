// Package migrations embeds the SQL schema and runs it with golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed *.sql
var FS embed.FS

// Direction selects which way Run migrates.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Result reports the schema version after a run.
type Result struct {
	Version  uint
	Dirty    bool
	NoChange bool
}

// New builds a migrator over the embedded files for the database at dsn.
//
// Precondition: dsn must be a postgres:// URL.
func New(dsn string) (*migrate.Migrate, error) {
	src, err := iofs.New(FS, ".")
	if err != nil {
		return nil, fmt.Errorf("opening embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}

// Run migrates the database at dsn. steps == 0 applies every pending
// migration in dir.
//
// Postcondition: NoChange is set instead of returning migrate.ErrNoChange.
func Run(dsn string, dir Direction, steps int) (Result, error) {
	if steps < 0 {
		return Result{}, fmt.Errorf("steps must be >= 0, got %d", steps)
	}
	m, err := New(dsn)
	if err != nil {
		return Result{}, err
	}
	defer m.Close()

	switch dir {
	case Up:
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case Down:
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	default:
		return Result{}, fmt.Errorf("invalid direction %q: must be 'up' or 'down'", dir)
	}

	res := Result{NoChange: errors.Is(err, migrate.ErrNoChange)}
	if err != nil && !res.NoChange {
		return res, fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return res, fmt.Errorf("reading schema version: %w", verr)
	}
	res.Version, res.Dirty = version, dirty
	return res, nil
}

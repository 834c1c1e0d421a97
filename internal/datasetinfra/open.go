package datasetinfra

import (
	"database/sql"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite"   // modernc.org/sqlite, pure Go
	DriverSQLite3  = "sqlite3"  // github.com/mattn/go-sqlite3, cgo
	DriverPostgres = "postgres" // github.com/lib/pq
)

// Config describes how to open a database connection.
type Config struct {
	// Driver is one of DriverSQLite, DriverSQLite3 or DriverPostgres.
	Driver string

	// DSN is passed verbatim to sql.Open.
	DSN string

	// MaxOpenConns caps the pool size. Zero leaves the driver default.
	// In-memory SQLite databases need 1 so every query sees the same data.
	MaxOpenConns int

	// ConnMaxLifetime bounds how long a pooled connection is reused.
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns an in-memory SQLite configuration.
func DefaultConfig() Config {
	return Config{
		Driver:       DriverSQLite,
		DSN:          "file::memory:?cache=shared",
		MaxOpenConns: 1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required, validation.In(DriverSQLite, DriverSQLite3, DriverPostgres)),
		validation.Field(&c.DSN, validation.Required),
		validation.Field(&c.MaxOpenConns, validation.Min(0)),
	)
	if err != nil {
		return errors.FromOzzoValidation(err, "invalid database configuration")
	}
	return nil
}

// Open validates cfg, opens the connection pool and wraps it with the
// matching bun dialect.
func Open(cfg Config) (*Database, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryExternal, "open database").
			WithTextCode("DATABASE_OPEN_FAILED").
			WithMetadata(map[string]any{"driver": cfg.Driver})
	}

	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	return New(bun.NewDB(sqldb, dialectFor(cfg.Driver))), nil
}

func dialectFor(driver string) schema.Dialect {
	if driver == DriverPostgres {
		return pgdialect.New()
	}
	return sqlitedialect.New()
}

package datasetinfra

import (
	"context"
	"sort"

	"github.com/goliatone/go-model/dataset"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

type txContextKey struct{}

// Database adapts a *bun.DB to dataset.Database.
type Database struct {
	db *bun.DB
}

var _ dataset.Database = (*Database)(nil)

// New wraps an already configured bun database.
func New(db *bun.DB) *Database {
	return &Database{db: db}
}

// DB exposes the underlying bun handle.
func (d *Database) DB() *bun.DB {
	return d.db
}

// Close closes the underlying connection pool.
func (d *Database) Close() error {
	return d.db.Close()
}

// Name reports the dialect name ("sqlite", "pg").
func (d *Database) Name() string {
	return d.db.Dialect().Name().String()
}

// Dataset returns an unfiltered dataset over table.
func (d *Database) Dataset(table string) dataset.Dataset {
	return &Dataset{db: d, table: table}
}

// Execute runs query on the transaction carried by ctx, if any.
func (d *Database) Execute(ctx context.Context, query string, args ...any) error {
	_, err := d.conn(ctx).NewRaw(query, args...).Exec(ctx)
	return err
}

// Transaction runs fn in a bun transaction. Nested calls reuse the
// transaction already stored in ctx.
func (d *Database) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txContextKey{}).(bun.Tx); ok {
		return fn(ctx)
	}
	return d.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(context.WithValue(ctx, txContextKey{}, tx))
	})
}

// TableExists checks the dialect catalog for table.
func (d *Database) TableExists(ctx context.Context, table string) (bool, error) {
	var query string
	switch d.db.Dialect().Name() {
	case dialect.PG:
		query = "SELECT count(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?"
	default:
		query = "SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
	}

	var n int
	if err := d.conn(ctx).NewRaw(query, table).Scan(ctx, &n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *Database) conn(ctx context.Context) bun.IDB {
	if tx, ok := ctx.Value(txContextKey{}).(bun.Tx); ok {
		return tx
	}
	return d.db
}

// sortedKeys keeps generated WHERE clauses stable across runs.
func sortedKeys(cond dataset.Cond) []string {
	keys := make([]string, 0, len(cond))
	for k := range cond {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

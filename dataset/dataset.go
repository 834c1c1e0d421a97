package dataset

import (
	"context"
	"maps"
)

// Values maps column names to row values.
type Values map[string]any

// Clone returns a shallow copy of v. A nil receiver yields an empty mapping.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	maps.Copy(out, v)
	return out
}

// Cond is a set of equality conditions joined with AND.
// A nil value matches rows where the column IS NULL.
type Cond map[string]any

// Database is the handle a record type binds its datasets from.
type Database interface {
	// Name reports the SQL dialect, e.g. "sqlite" or "pg".
	Name() string
	// Dataset returns an unfiltered dataset over table.
	Dataset(table string) Dataset
	// Execute runs a statement that does not return rows.
	Execute(ctx context.Context, query string, args ...any) error
	// Transaction runs fn inside a transaction. The transaction is rolled back
	// when fn returns an error and committed otherwise. Calls made with a
	// context that already carries a transaction join it.
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
	TableExists(ctx context.Context, table string) (bool, error)
}

// Dataset is a lazy query source over a single table. Filter and Order
// return derived datasets and never touch the database.
type Dataset interface {
	Table() string
	Database() Database

	Filter(cond Cond) Dataset
	Order(columns ...string) Dataset

	// First returns the first matching row, or nil when nothing matches.
	First(ctx context.Context) (Values, error)
	All(ctx context.Context) ([]Values, error)
	Each(ctx context.Context, fn func(Values) error) error
	Count(ctx context.Context) (int64, error)
	Columns(ctx context.Context) ([]string, error)

	// Insert adds a row and returns the value generated for key.
	Insert(ctx context.Context, values Values, key string) (any, error)
	// Update sets values on every matching row and returns the affected count.
	Update(ctx context.Context, values Values) (int64, error)
	// Delete removes every matching row and returns the affected count.
	Delete(ctx context.Context) (int64, error)
}

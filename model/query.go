package model

import (
	"context"
	"fmt"

	"github.com/goliatone/go-model/dataset"
)

// Query is a lazy dataset tagged with its record type. Rows it returns are
// decoded into records of that type. Filter and Order return new queries and
// never touch the database.
type Query struct {
	model *Type
	ds    dataset.Dataset
}

// Model returns the record type rows decode into.
func (q *Query) Model() *Type { return q.model }

// Dataset returns the underlying dataset.
func (q *Query) Dataset() dataset.Dataset { return q.ds }

func (q *Query) Table() string { return q.ds.Table() }

func (q *Query) Filter(cond dataset.Cond) *Query {
	return &Query{model: q.model, ds: q.ds.Filter(cond)}
}

func (q *Query) Order(columns ...string) *Query {
	return &Query{model: q.model, ds: q.ds.Order(columns...)}
}

// First returns the first matching record, or nil when nothing matches.
func (q *Query) First(ctx context.Context) (*Record, error) {
	row, err := q.ds.First(ctx)
	if err != nil || row == nil {
		return nil, err
	}
	return q.model.load(row), nil
}

// Get returns the first record matching cond, or nil.
func (q *Query) Get(ctx context.Context, cond dataset.Cond) (*Record, error) {
	return q.Filter(cond).First(ctx)
}

func (q *Query) All(ctx context.Context) ([]*Record, error) {
	rows, err := q.ds.All(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]*Record, len(rows))
	for i, row := range rows {
		records[i] = q.model.load(row)
	}
	return records, nil
}

// Each calls fn for every matching record, stopping at the first error.
func (q *Query) Each(ctx context.Context, fn func(*Record) error) error {
	return q.ds.Each(ctx, func(row dataset.Values) error {
		return fn(q.model.load(row))
	})
}

// Map returns the value of column for every matching row.
func (q *Query) Map(ctx context.Context, column string) ([]any, error) {
	var out []any
	err := q.ds.Each(ctx, func(row dataset.Values) error {
		out = append(out, row[column])
		return nil
	})
	return out, err
}

// HashColumn maps the string form of keyColumn to valueColumn for every
// matching row. Later rows win on duplicate keys.
func (q *Query) HashColumn(ctx context.Context, keyColumn, valueColumn string) (map[string]any, error) {
	out := make(map[string]any)
	err := q.ds.Each(ctx, func(row dataset.Values) error {
		out[fmt.Sprint(row[keyColumn])] = row[valueColumn]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (q *Query) Count(ctx context.Context) (int64, error) {
	return q.ds.Count(ctx)
}

// Update sets values on every matching row without running hooks. Cached
// entries of the type are purged on success.
func (q *Query) Update(ctx context.Context, values dataset.Values) (int64, error) {
	n, err := q.ds.Update(ctx, values)
	if err != nil {
		return n, err
	}
	q.model.purgeCache(ctx)
	return n, nil
}

// Delete removes every matching row without running hooks. Cached entries
// of the type are purged on success.
func (q *Query) Delete(ctx context.Context) (int64, error) {
	n, err := q.ds.Delete(ctx)
	if err != nil {
		return n, err
	}
	q.model.purgeCache(ctx)
	return n, nil
}

// Destroy loads every matching record and destroys it individually, so
// destroy hooks and cache invalidation run for each one. The whole pass runs
// in one transaction.
func (q *Query) Destroy(ctx context.Context) (int64, error) {
	var n int64
	err := q.ds.Database().Transaction(ctx, func(ctx context.Context) error {
		records, err := q.All(ctx)
		if err != nil {
			return err
		}
		for _, r := range records {
			if err := r.Destroy(ctx); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

package datasetinfra

import (
	"context"
	"errors"

	"github.com/goliatone/go-model/dataset"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
)

// Dataset is an immutable query description over one table.
type Dataset struct {
	db    *Database
	table string
	conds []dataset.Cond
	order []string
}

var _ dataset.Dataset = (*Dataset)(nil)

func (d *Dataset) Table() string {
	return d.table
}

func (d *Dataset) Database() dataset.Database {
	return d.db
}

// Filter returns a copy of d with cond ANDed onto its conditions.
func (d *Dataset) Filter(cond dataset.Cond) dataset.Dataset {
	next := d.clone()
	if len(cond) > 0 {
		next.conds = append(next.conds, dataset.Cond(dataset.Values(cond).Clone()))
	}
	return next
}

// Order returns a copy of d ordered by columns. Entries may carry a
// direction, e.g. "name DESC".
func (d *Dataset) Order(columns ...string) dataset.Dataset {
	next := d.clone()
	next.order = append(next.order, columns...)
	return next
}

func (d *Dataset) First(ctx context.Context) (dataset.Values, error) {
	var rows []map[string]interface{}
	if err := d.selectQuery(ctx).Limit(1).Scan(ctx, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return dataset.Values(rows[0]), nil
}

func (d *Dataset) All(ctx context.Context) ([]dataset.Values, error) {
	var rows []map[string]interface{}
	if err := d.selectQuery(ctx).Scan(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]dataset.Values, len(rows))
	for i, row := range rows {
		out[i] = dataset.Values(row)
	}
	return out, nil
}

// Each materializes the result set before calling fn so callbacks can issue
// their own queries on single-connection pools.
func (d *Dataset) Each(ctx context.Context, fn func(dataset.Values) error) error {
	rows, err := d.All(ctx)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dataset) Count(ctx context.Context) (int64, error) {
	n, err := d.selectQuery(ctx).Count(ctx)
	return int64(n), err
}

// Columns reads the column names of the table from an empty result set.
func (d *Dataset) Columns(ctx context.Context) ([]string, error) {
	rows, err := d.db.conn(ctx).NewSelect().
		TableExpr("?", bun.Ident(d.table)).
		Where("1 = 0").
		Rows(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	return columns, rows.Err()
}

// Insert adds values as a new row. The generated key is read through
// RETURNING when the dialect supports it and from LastInsertId otherwise.
func (d *Dataset) Insert(ctx context.Context, values dataset.Values, key string) (any, error) {
	conn := d.db.conn(ctx)
	returning := key != "" && conn.Dialect().Features().Has(feature.InsertReturning)

	if len(values) == 0 {
		return d.insertDefaults(ctx, conn, key, returning)
	}

	row := map[string]interface{}(values.Clone())
	q := conn.NewInsert().Model(&row).TableExpr("?", bun.Ident(d.table))

	if returning {
		var out []map[string]interface{}
		if err := q.Returning("?", bun.Ident(key)).Scan(ctx, &out); err != nil {
			return nil, err
		}
		return returnedKey(out, key), nil
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, err
	}
	if v, ok := values[key]; ok && v != nil {
		return v, nil
	}
	return res.LastInsertId()
}

func (d *Dataset) insertDefaults(ctx context.Context, conn bun.IDB, key string, returning bool) (any, error) {
	if returning {
		var out []map[string]interface{}
		err := conn.NewRaw("INSERT INTO ? DEFAULT VALUES RETURNING ?", bun.Ident(d.table), bun.Ident(key)).
			Scan(ctx, &out)
		if err != nil {
			return nil, err
		}
		return returnedKey(out, key), nil
	}

	res, err := conn.NewRaw("INSERT INTO ? DEFAULT VALUES", bun.Ident(d.table)).Exec(ctx)
	if err != nil {
		return nil, err
	}
	return res.LastInsertId()
}

func (d *Dataset) Update(ctx context.Context, values dataset.Values) (int64, error) {
	if len(values) == 0 {
		return 0, errors.New("datasetinfra: update requires at least one value")
	}

	row := map[string]interface{}(values.Clone())
	q := d.db.conn(ctx).NewUpdate().Model(&row).TableExpr("?", bun.Ident(d.table))
	if len(d.conds) == 0 {
		// bun refuses UPDATE without WHERE.
		q.Where("1 = 1")
	}
	whereConds(d.conds, func(query string, args ...interface{}) { q.Where(query, args...) })

	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *Dataset) Delete(ctx context.Context) (int64, error) {
	q := d.db.conn(ctx).NewDelete().TableExpr("?", bun.Ident(d.table))
	if len(d.conds) == 0 {
		q.Where("1 = 1")
	}
	whereConds(d.conds, func(query string, args ...interface{}) { q.Where(query, args...) })

	res, err := q.Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (d *Dataset) selectQuery(ctx context.Context) *bun.SelectQuery {
	q := d.db.conn(ctx).NewSelect().TableExpr("?", bun.Ident(d.table))
	whereConds(d.conds, func(query string, args ...interface{}) { q.Where(query, args...) })
	if len(d.order) > 0 {
		q.Order(d.order...)
	}
	return q
}

func whereConds(conds []dataset.Cond, where func(query string, args ...interface{})) {
	for _, cond := range conds {
		for _, col := range sortedKeys(cond) {
			if v := cond[col]; v == nil {
				where("? IS NULL", bun.Ident(col))
			} else {
				where("? = ?", bun.Ident(col), v)
			}
		}
	}
}

func (d *Dataset) clone() *Dataset {
	return &Dataset{
		db:    d.db,
		table: d.table,
		conds: append([]dataset.Cond(nil), d.conds...),
		order: append([]string(nil), d.order...),
	}
}

func returnedKey(rows []map[string]interface{}, key string) any {
	if len(rows) == 0 {
		return nil
	}
	return rows[0][key]
}

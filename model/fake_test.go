package model

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-model/dataset"
)

type txKey struct{}

// fakeDB is an in-memory dataset.Database that records every call.
type fakeDB struct {
	mu        sync.Mutex
	tables    map[string][]dataset.Values
	columns   map[string][]string
	nextID    map[string]int64
	calls     []string
	executed  []string
	insertErr error
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		tables:  make(map[string][]dataset.Values),
		columns: make(map[string][]string),
		nextID:  make(map[string]int64),
	}
}

func (db *fakeDB) record(format string, args ...any) {
	db.mu.Lock()
	db.calls = append(db.calls, fmt.Sprintf(format, args...))
	db.mu.Unlock()
}

// countCalls returns how many recorded calls start with prefix.
func (db *fakeDB) countCalls(prefix string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, c := range db.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (db *fakeDB) resetCalls() {
	db.mu.Lock()
	db.calls = nil
	db.mu.Unlock()
}

func (db *fakeDB) rows(table string) []dataset.Values {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]dataset.Values, len(db.tables[table]))
	for i, row := range db.tables[table] {
		out[i] = row.Clone()
	}
	return out
}

func (db *fakeDB) seed(table string, rows ...dataset.Values) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, row := range rows {
		row = row.Clone()
		if id, ok := row["id"].(int64); ok && id > db.nextID[table] {
			db.nextID[table] = id
		}
		db.tables[table] = append(db.tables[table], row)
	}
}

func (db *fakeDB) Name() string { return "fake" }

func (db *fakeDB) Dataset(table string) dataset.Dataset {
	return &fakeDataset{db: db, table: table}
}

func (db *fakeDB) Execute(ctx context.Context, query string, args ...any) error {
	db.mu.Lock()
	db.executed = append(db.executed, query)
	db.mu.Unlock()
	return nil
}

func (db *fakeDB) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	db.record("begin")
	db.mu.Lock()
	snapshot := make(map[string][]dataset.Values, len(db.tables))
	for table, rows := range db.tables {
		copied := make([]dataset.Values, len(rows))
		for i, row := range rows {
			copied[i] = row.Clone()
		}
		snapshot[table] = copied
	}
	db.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		db.mu.Lock()
		db.tables = snapshot
		db.mu.Unlock()
		db.record("rollback")
		return err
	}
	db.record("commit")
	return nil
}

func (db *fakeDB) TableExists(ctx context.Context, table string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, ok := db.tables[table]
	return ok, nil
}

type fakeDataset struct {
	db    *fakeDB
	table string
	conds []dataset.Cond
	order []string
}

func (d *fakeDataset) Table() string              { return d.table }
func (d *fakeDataset) Database() dataset.Database { return d.db }

func (d *fakeDataset) Filter(cond dataset.Cond) dataset.Dataset {
	out := *d
	out.conds = append(append([]dataset.Cond(nil), d.conds...), cond)
	return &out
}

func (d *fakeDataset) Order(columns ...string) dataset.Dataset {
	out := *d
	out.order = append(append([]string(nil), d.order...), columns...)
	return &out
}

func (d *fakeDataset) matches(row dataset.Values) bool {
	for _, cond := range d.conds {
		for col, want := range cond {
			got := row[col]
			if want == nil || got == nil {
				if want != got {
					return false
				}
				continue
			}
			if fmt.Sprint(got) != fmt.Sprint(want) {
				return false
			}
		}
	}
	return true
}

// selectIdx returns indexes of matching rows in result order. Caller holds mu.
func (d *fakeDataset) selectIdx() []int {
	rows := d.db.tables[d.table]
	var idx []int
	for i, row := range rows {
		if d.matches(row) {
			idx = append(idx, i)
		}
	}
	for k := len(d.order) - 1; k >= 0; k-- {
		col, desc := d.order[k], false
		if c, ok := strings.CutSuffix(col, " DESC"); ok {
			col, desc = c, true
		}
		sort.SliceStable(idx, func(a, b int) bool {
			x, y := rows[idx[a]][col], rows[idx[b]][col]
			if desc {
				x, y = y, x
			}
			return lessValue(x, y)
		})
	}
	return idx
}

func lessValue(a, b any) bool {
	switch av := a.(type) {
	case int64:
		if bv, ok := b.(int64); ok {
			return av < bv
		}
	case int:
		if bv, ok := b.(int); ok {
			return av < bv
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Before(bv)
		}
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func (d *fakeDataset) First(ctx context.Context) (dataset.Values, error) {
	d.db.record("first %s", d.table)
	d.db.mu.Lock()
	defer d.db.mu.Unlock()
	idx := d.selectIdx()
	if len(idx) == 0 {
		return nil, nil
	}
	return d.db.tables[d.table][idx[0]].Clone(), nil
}

func (d *fakeDataset) All(ctx context.Context) ([]dataset.Values, error) {
	d.db.record("all %s", d.table)
	d.db.mu.Lock()
	defer d.db.mu.Unlock()
	var out []dataset.Values
	for _, i := range d.selectIdx() {
		out = append(out, d.db.tables[d.table][i].Clone())
	}
	return out, nil
}

func (d *fakeDataset) Each(ctx context.Context, fn func(dataset.Values) error) error {
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

func (d *fakeDataset) Count(ctx context.Context) (int64, error) {
	d.db.record("count %s", d.table)
	d.db.mu.Lock()
	defer d.db.mu.Unlock()
	return int64(len(d.selectIdx())), nil
}

func (d *fakeDataset) Columns(ctx context.Context) ([]string, error) {
	d.db.record("columns %s", d.table)
	d.db.mu.Lock()
	defer d.db.mu.Unlock()
	return append([]string(nil), d.db.columns[d.table]...), nil
}

func (d *fakeDataset) Insert(ctx context.Context, values dataset.Values, key string) (any, error) {
	d.db.record("insert %s", d.table)
	d.db.mu.Lock()
	defer d.db.mu.Unlock()
	if d.db.insertErr != nil {
		return nil, d.db.insertErr
	}

	row := values.Clone()
	if row[key] == nil {
		d.db.nextID[d.table]++
		row[key] = d.db.nextID[d.table]
	}
	d.db.tables[d.table] = append(d.db.tables[d.table], row)
	return row[key], nil
}

func (d *fakeDataset) Update(ctx context.Context, values dataset.Values) (int64, error) {
	d.db.record("update %s", d.table)
	d.db.mu.Lock()
	defer d.db.mu.Unlock()
	idx := d.selectIdx()
	for _, i := range idx {
		for col, v := range values {
			d.db.tables[d.table][i][col] = v
		}
	}
	return int64(len(idx)), nil
}

func (d *fakeDataset) Delete(ctx context.Context) (int64, error) {
	d.db.record("delete %s", d.table)
	d.db.mu.Lock()
	defer d.db.mu.Unlock()
	drop := make(map[int]bool)
	for _, i := range d.selectIdx() {
		drop[i] = true
	}
	var kept []dataset.Values
	for i, row := range d.db.tables[d.table] {
		if !drop[i] {
			kept = append(kept, row)
		}
	}
	d.db.tables[d.table] = kept
	return int64(len(drop)), nil
}

// mustType builds a type or fails the test.
func mustType(t *testing.T, name string, opts ...Option) *Type {
	t.Helper()
	typ, err := New(name, opts...)
	if err != nil {
		t.Fatalf("New(%q) failed: %v", name, err)
	}
	return typ
}

// usersFixture returns a "User" type over a users table with two rows.
func usersFixture(t *testing.T, opts ...Option) (*Type, *fakeDB) {
	t.Helper()
	db := newFakeDB()
	db.columns["users"] = []string{"id", "name", "email", "kind"}
	db.seed("users",
		dataset.Values{"id": int64(1), "name": "Alice", "email": "alice@example.com", "kind": "admin"},
		dataset.Values{"id": int64(2), "name": "Bob", "email": "bob@example.com", "kind": "member"},
	)
	opts = append([]Option{WithDatabase(db), WithTable("users")}, opts...)
	return mustType(t, "User", opts...), db
}

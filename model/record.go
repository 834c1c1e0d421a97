package model

import (
	"context"
	"fmt"

	"github.com/goliatone/go-model/dataset"
)

// Record is one row of a Type. It owns its value mapping and remembers the
// primary key value it was loaded or last saved with.
type Record struct {
	model  *Type
	values dataset.Values
	pkey   any
	// values as last read from or written to the database
	persisted dataset.Values
}

// New returns an unsaved record of t holding a copy of values. The record
// counts as persisted if values carries a primary key.
func (t *Type) New(values dataset.Values) *Record {
	values = values.Clone()
	return &Record{
		model:  t,
		values: values,
		pkey:   values[t.PrimaryKey()],
	}
}

func (t *Type) load(row dataset.Values) *Record {
	r := &Record{model: t, values: row}
	r.markPersisted()
	return r
}

func (r *Record) markPersisted() {
	r.pkey = r.values[r.model.PrimaryKey()]
	r.persisted = r.values.Clone()
}

func (r *Record) Model() *Type { return r.model }

// Get returns the value of column.
func (r *Record) Get(column string) any { return r.values[column] }

// Put changes column in memory only. Save persists it.
func (r *Record) Put(column string, value any) {
	r.values[column] = value
}

// Values returns a copy of the value mapping.
func (r *Record) Values() dataset.Values { return r.values.Clone() }

// PK returns the primary key value cached at load or save time.
func (r *Record) PK() any { return r.pkey }

// IsNew reports whether the record has no primary key value yet.
func (r *Record) IsNew() bool { return r.pkey == nil }

// Equal reports whether both records are of the same type and share a
// primary key. New records are never equal.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil || r.model != other.model || r.IsNew() || other.IsNew() {
		return false
	}
	return fmt.Sprint(r.pkey) == fmt.Sprint(other.pkey)
}

func (r *Record) String() string {
	return fmt.Sprintf("#<%s %v>", r.model.name, map[string]any(r.values))
}

// Save inserts a new record or updates a persisted one, running the save
// hooks inside a transaction.
func (r *Record) Save(ctx context.Context) error {
	_, err := r.Call(ctx, "save")
	return err
}

// Destroy deletes the record inside a transaction, running destroy hooks.
func (r *Record) Destroy(ctx context.Context) error {
	_, err := r.Call(ctx, "destroy")
	return err
}

// Set writes values to the record's row immediately, without hooks, and
// merges them into the record on success.
func (r *Record) Set(ctx context.Context, values dataset.Values) error {
	_, err := r.Call(ctx, "set", values)
	return err
}

// Delete removes the record's row without running hooks.
func (r *Record) Delete(ctx context.Context) error {
	_, err := r.Call(ctx, "delete")
	return err
}

// Refresh reloads the record from its row. When the row is gone it fails
// with ErrNotFound and leaves the in-memory values unchanged.
func (r *Record) Refresh(ctx context.Context) error {
	_, err := r.Call(ctx, "refresh")
	return err
}

// Exists reports whether exactly one row matches the record's primary key.
func (r *Record) Exists(ctx context.Context) (bool, error) {
	res, err := r.Call(ctx, "exists")
	if err != nil {
		return false, err
	}
	ok, _ := res.(bool)
	return ok, nil
}

// CacheKey returns the fingerprint of the record under its type's cache
// configuration, or "" when the type is not cached.
func (r *Record) CacheKey() string {
	res, err := r.Call(context.Background(), "cache_key")
	if err != nil {
		return ""
	}
	key, _ := res.(string)
	return key
}

// One calls the one-to-one association name.
func (r *Record) One(ctx context.Context, name string) (*Record, error) {
	res, err := r.Call(ctx, name)
	if err != nil {
		return nil, err
	}
	rec, _ := res.(*Record)
	return rec, nil
}

// Many calls the one-to-many association name.
func (r *Record) Many(ctx context.Context, name string) (*Query, error) {
	res, err := r.Call(ctx, name)
	if err != nil {
		return nil, err
	}
	q, _ := res.(*Query)
	return q, nil
}

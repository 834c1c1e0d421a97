package model

import (
	"context"

	"github.com/goliatone/go-model/dataset"
)

// Create inserts a record built from values, reloads it and returns it.
// The record is inserted even when values carries a primary key.
func (t *Type) Create(ctx context.Context, values dataset.Values) (*Record, error) {
	r := t.New(values)
	r.pkey = nil
	if err := r.Save(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Find returns the record whose primary key is key, or nil.
func (t *Type) Find(ctx context.Context, key any) (*Record, error) {
	return t.Get(ctx, dataset.Cond{t.PrimaryKey(): key})
}

// Get returns the first record matching cond, or nil.
func (t *Type) Get(ctx context.Context, cond dataset.Cond) (*Record, error) {
	q, err := t.Dataset()
	if err != nil {
		return nil, err
	}
	return q.Get(ctx, cond)
}

// Filter returns a lazy query over the records matching cond.
func (t *Type) Filter(cond dataset.Cond) (*Query, error) {
	q, err := t.Dataset()
	if err != nil {
		return nil, err
	}
	return q.Filter(cond), nil
}

func (t *Type) All(ctx context.Context) ([]*Record, error) {
	q, err := t.Dataset()
	if err != nil {
		return nil, err
	}
	return q.All(ctx)
}

func (t *Type) First(ctx context.Context) (*Record, error) {
	q, err := t.Dataset()
	if err != nil {
		return nil, err
	}
	return q.First(ctx)
}

func (t *Type) Count(ctx context.Context) (int64, error) {
	q, err := t.Dataset()
	if err != nil {
		return 0, err
	}
	return q.Count(ctx)
}

func (t *Type) Each(ctx context.Context, fn func(*Record) error) error {
	q, err := t.Dataset()
	if err != nil {
		return err
	}
	return q.Each(ctx, fn)
}

// DestroyAll destroys every record of the type. When destroy hooks are
// registered on the type or any ancestor each record is destroyed on its own
// so the hooks run; otherwise the rows are removed with one bulk delete.
func (t *Type) DestroyAll(ctx context.Context) (int64, error) {
	q, err := t.Dataset()
	if err != nil {
		return 0, err
	}
	if t.HasHooks(BeforeDestroy) || t.HasHooks(AfterDestroy) {
		n, err := q.Destroy(ctx)
		if err != nil {
			return n, err
		}
		t.purgeCache(ctx)
		return n, nil
	}
	return q.Delete(ctx)
}

// DeleteAll removes every row of the type without running hooks.
func (t *Type) DeleteAll(ctx context.Context) (int64, error) {
	q, err := t.Dataset()
	if err != nil {
		return 0, err
	}
	return q.Delete(ctx)
}

func (r *Record) save(ctx context.Context) error {
	if r.IsNew() {
		return r.insert(ctx)
	}
	return r.update(ctx)
}

func (r *Record) insert(ctx context.Context) error {
	t := r.model
	q, err := t.Dataset()
	if err != nil {
		return err
	}

	prevValues := r.values.Clone()
	err = q.ds.Database().Transaction(ctx, func(ctx context.Context) error {
		if err := t.runAll(ctx, r, BeforeSave, BeforeCreate); err != nil {
			return err
		}

		pk := t.PrimaryKey()
		values := r.values.Clone()
		if v, ok := values[pk]; ok && v == nil {
			delete(values, pk)
		}

		key, err := q.ds.Insert(ctx, values, pk)
		if err != nil {
			return err
		}
		if v := values[pk]; v != nil {
			key = v
		}

		row, err := q.ds.Filter(dataset.Cond{pk: key}).First(ctx)
		if err != nil {
			return err
		}
		if row == nil {
			return notFoundError(t, key)
		}
		r.values = row
		r.markPersisted()

		return t.runAll(ctx, r, AfterCreate, AfterSave)
	})
	if err != nil {
		r.values = prevValues
		r.pkey = nil
		r.persisted = nil
		return err
	}
	return nil
}

func (r *Record) update(ctx context.Context) error {
	t := r.model
	q, err := t.Dataset()
	if err != nil {
		return err
	}

	err = q.ds.Database().Transaction(ctx, func(ctx context.Context) error {
		if err := t.runAll(ctx, r, BeforeSave, BeforeUpdate); err != nil {
			return err
		}

		n, err := q.ds.Filter(r.pkCond()).Update(ctx, r.values.Clone())
		if err != nil {
			return err
		}
		if n == 0 {
			return persistenceError(t, "update", n)
		}

		return t.runAll(ctx, r, AfterUpdate, AfterSave)
	})
	if err != nil {
		return err
	}

	r.markPersisted()
	return nil
}

func (r *Record) destroy(ctx context.Context) error {
	t := r.model
	if r.IsNew() {
		return newRecordError(t, "destroy")
	}
	q, err := t.Dataset()
	if err != nil {
		return err
	}

	return q.ds.Database().Transaction(ctx, func(ctx context.Context) error {
		if err := t.runHooks(ctx, BeforeDestroy, r); err != nil {
			return err
		}
		if err := r.deleteRow(ctx, q); err != nil {
			return err
		}
		return t.runHooks(ctx, AfterDestroy, r)
	})
}

func (r *Record) delete(ctx context.Context) error {
	if r.IsNew() {
		return newRecordError(r.model, "delete")
	}
	q, err := r.model.Dataset()
	if err != nil {
		return err
	}
	return r.deleteRow(ctx, q)
}

func (r *Record) deleteRow(ctx context.Context, q *Query) error {
	n, err := q.ds.Filter(r.pkCond()).Delete(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return persistenceError(r.model, "delete", n)
	}
	return nil
}

func (r *Record) refresh(ctx context.Context) error {
	if r.IsNew() {
		return newRecordError(r.model, "refresh")
	}
	q, err := r.model.Dataset()
	if err != nil {
		return err
	}

	row, err := q.ds.Filter(r.pkCond()).First(ctx)
	if err != nil {
		return err
	}
	if row == nil {
		return notFoundError(r.model, r.pkey)
	}

	r.values = row
	r.markPersisted()
	return nil
}

func (r *Record) exists(ctx context.Context) (bool, error) {
	if r.IsNew() {
		return false, nil
	}
	q, err := r.model.Dataset()
	if err != nil {
		return false, err
	}
	n, err := q.ds.Filter(r.pkCond()).Count(ctx)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *Record) set(ctx context.Context, values dataset.Values) error {
	if r.IsNew() {
		return newRecordError(r.model, "set")
	}
	q, err := r.model.Dataset()
	if err != nil {
		return err
	}

	n, err := q.ds.Filter(r.pkCond()).Update(ctx, values)
	if err != nil {
		return err
	}
	if n == 0 {
		return persistenceError(r.model, "set", n)
	}

	if r.persisted == nil {
		r.persisted = dataset.Values{}
	}
	for column, value := range values {
		r.values[column] = value
		r.persisted[column] = value
	}
	if v, ok := values[r.model.PrimaryKey()]; ok {
		r.pkey = v
	}
	return nil
}

func (r *Record) pkCond() dataset.Cond {
	return dataset.Cond{r.model.PrimaryKey(): r.pkey}
}

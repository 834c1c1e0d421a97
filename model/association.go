package model

import (
	"context"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-model/dataset"
)

// Association describes a relationship to another record type or to a bare
// table. Exactly one of Class and Table is set.
type Association struct {
	// Key is the owner's foreign key column of a one-to-one association.
	Key string
	// On is the target's foreign key column of a one-to-many association.
	On    string
	Class *Type
	Table string
	// Order sorts one-to-many results, e.g. "created_at DESC".
	Order []string
}

func (a Association) validate(oneToMany bool) error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Table,
			validation.When(a.Class == nil, validation.Required.Error("class or table is required")),
			validation.When(a.Class != nil, validation.Empty.Error("cannot be combined with a class")),
		),
		validation.Field(&a.On, validation.When(oneToMany, validation.Required)),
	)
}

type association struct {
	Association
	owner *Type

	mu   sync.Mutex
	anon *Type
}

// target returns the associated type. Table targets get an anonymous type
// over the owner's database, built once.
func (a *association) target() (*Type, error) {
	if a.Class != nil {
		return a.Class, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.anon != nil {
		return a.anon, nil
	}

	db, err := a.owner.Database()
	if err != nil {
		return nil, err
	}
	anon, err := New(a.Table, WithDatabase(db), WithTable(a.Table))
	if err != nil {
		return nil, err
	}
	a.anon = anon
	return anon, nil
}

// OneToOne defines an accessor name returning the record referenced by the
// owner's foreign key, or nil when the key is unset. Key defaults to
// name + "_id".
func (t *Type) OneToOne(name string, desc Association) error {
	if desc.Key == "" {
		desc.Key = name + "_id"
	}
	if err := desc.validate(false); err != nil {
		return errors.FromOzzoValidation(err, "invalid association "+name).
			WithTextCode("INVALID_ASSOCIATION")
	}

	a := &association{Association: desc, owner: t}
	t.instanceOps.Store(name, func(ctx context.Context, r *Record, args ...any) (any, error) {
		fk := r.values[a.Key]
		if fk == nil {
			return nil, nil
		}
		target, err := a.target()
		if err != nil {
			return nil, err
		}
		return recordOrNil(target.Find(ctx, fk))
	})
	return nil
}

// OneToMany defines an accessor name returning a lazy query over the target
// rows whose On column equals the owner's primary key. Every call builds a
// fresh query, so it reflects the record's current key.
func (t *Type) OneToMany(name string, desc Association) error {
	if err := desc.validate(true); err != nil {
		return errors.FromOzzoValidation(err, "invalid association "+name).
			WithTextCode("INVALID_ASSOCIATION")
	}

	a := &association{Association: desc, owner: t}
	t.instanceOps.Store(name, func(ctx context.Context, r *Record, args ...any) (any, error) {
		if r.IsNew() {
			return nil, newRecordError(r.model, "load "+name+" of")
		}
		target, err := a.target()
		if err != nil {
			return nil, err
		}
		q, err := target.Filter(dataset.Cond{a.On: r.pkey})
		if err != nil {
			return nil, err
		}
		if len(a.Order) > 0 {
			q = q.Order(a.Order...)
		}
		return q, nil
	})
	return nil
}

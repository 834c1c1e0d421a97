package model

import (
	stderrors "errors"
	"fmt"

	"github.com/goliatone/go-errors"
)

// Sentinel errors. Every error returned by this package that belongs to one
// of these classes wraps the sentinel, so errors.Is works on the result.
var (
	ErrUnboundDataset = stderrors.New("no dataset bound")
	ErrNoSuchMethod   = stderrors.New("no such method")
	ErrNotFound       = stderrors.New("record not found")
	ErrPersistence    = stderrors.New("unexpected number of affected rows")
	ErrDatasetRebind  = stderrors.New("dataset already bound to another table")
	ErrPluginNotFound = stderrors.New("plugin not registered")
	ErrNewRecord      = stderrors.New("record is not persisted")
)

func newError(sentinel error, category errors.Category, code string, typeName string, format string, args ...any) error {
	return errors.Wrap(sentinel, category, fmt.Sprintf(format, args...)).
		WithTextCode(code).
		WithMetadata(map[string]any{"type": typeName})
}

func unboundError(t *Type) error {
	return newError(ErrUnboundDataset, errors.CategoryOperation, "UNBOUND_DATASET", t.name,
		"type %s has no table or database", t.name)
}

func noSuchMethodError(t *Type, name string) error {
	return newError(ErrNoSuchMethod, errors.CategoryBadInput, "NO_SUCH_METHOD", t.name,
		"undefined method %s for %s", name, t.name)
}

func notFoundError(t *Type, key any) error {
	return newError(ErrNotFound, errors.CategoryNotFound, "RECORD_NOT_FOUND", t.name,
		"%s with %s=%v not found", t.name, t.PrimaryKey(), key)
}

func persistenceError(t *Type, op string, rows int64) error {
	return newError(ErrPersistence, errors.CategoryConflict, "PERSISTENCE_FAILED", t.name,
		"%s on %s affected %d rows, expected 1", op, t.name, rows)
}

func rebindError(t *Type, bound, requested string) error {
	return newError(ErrDatasetRebind, errors.CategoryConflict, "DATASET_REBIND", t.name,
		"type %s is bound to %q, cannot rebind to %q", t.name, bound, requested)
}

func newRecordError(t *Type, op string) error {
	return newError(ErrNewRecord, errors.CategoryBadInput, "NEW_RECORD", t.name,
		"cannot %s a new %s", op, t.name)
}

func arityError(name string, want, got int) error {
	return errors.New(fmt.Sprintf("%s expects %d argument(s), got %d", name, want, got), errors.CategoryBadInput).
		WithTextCode("BAD_ARITY")
}

func argTypeError(name, want string, got any) error {
	return errors.New(fmt.Sprintf("%s expects %s, got %T", name, want, got), errors.CategoryBadInput).
		WithTextCode("BAD_ARGUMENT")
}

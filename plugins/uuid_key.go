package plugins

import (
	"context"

	"github.com/goliatone/go-model/model"
	"github.com/google/uuid"
)

const UUIDKeyName = "uuid_key"

// UUIDKey assigns a random UUID primary key to records created without one.
type UUIDKey struct{}

func (UUIDKey) Name() string { return UUIDKeyName }

func (UUIDKey) Apply(t *model.Type, opts model.Options) error {
	t.BeforeCreate(func(ctx context.Context, r *model.Record) error {
		pk := r.Model().PrimaryKey()
		if r.Get(pk) == nil {
			r.Put(pk, uuid.NewString())
		}
		return nil
	})
	return nil
}

func (UUIDKey) InstanceOps() map[string]model.InstanceOp { return nil }

func (UUIDKey) TypeOps() map[string]model.TypeOp { return nil }

// Builtin returns every plugin shipped with this package, ready for
// model.NewRegistry.
func Builtin() []model.Plugin {
	return []model.Plugin{Timestamped{}, UUIDKey{}}
}

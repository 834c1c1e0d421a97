package plugins

import (
	"context"
	"time"

	"github.com/goliatone/go-model/model"
)

const (
	TimestampedName = "timestamped"
	// DefaultStampColumn is used when the "column" option is not set.
	DefaultStampColumn = "stamp"
)

// Timestamped stamps a column with the current time before every save.
//
// Options:
//   - "column": the column to stamp, DefaultStampColumn when empty
type Timestamped struct {
	// Now returns the stamp value. Defaults to time.Now.
	Now func() time.Time
}

func (p Timestamped) Name() string { return TimestampedName }

func (p Timestamped) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func stampColumn(opts model.Options) string {
	if col, ok := opts["column"].(string); ok && col != "" {
		return col
	}
	return DefaultStampColumn
}

func (p Timestamped) Apply(t *model.Type, opts model.Options) error {
	column := stampColumn(opts)
	t.BeforeSave(func(ctx context.Context, r *model.Record) error {
		r.Put(column, p.now().UTC())
		return nil
	})
	return nil
}

func (p Timestamped) InstanceOps() map[string]model.InstanceOp {
	return map[string]model.InstanceOp{
		"get_stamp": func(ctx context.Context, r *model.Record, args ...any) (any, error) {
			opts, _ := r.Model().PluginOptions(TimestampedName)
			return r.Get(stampColumn(opts)), nil
		},
		"timestamped_opts": func(ctx context.Context, r *model.Record, args ...any) (any, error) {
			opts, _ := r.Model().PluginOptions(TimestampedName)
			return opts, nil
		},
	}
}

func (p Timestamped) TypeOps() map[string]model.TypeOp {
	return map[string]model.TypeOp{
		"stamp_opts": func(ctx context.Context, t *model.Type, args ...any) (any, error) {
			opts, _ := t.PluginOptions(TimestampedName)
			return opts, nil
		},
		"timestamped_opts": func(ctx context.Context, t *model.Type, args ...any) (any, error) {
			opts, _ := t.PluginOptions(TimestampedName)
			return opts, nil
		},
	}
}

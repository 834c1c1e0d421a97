package model

import (
	"context"
	"strings"

	"github.com/goliatone/go-model/dataset"
)

// TypeOp is a type-level operation callable through Type.Call.
type TypeOp func(ctx context.Context, t *Type, args ...any) (any, error)

// InstanceOp is a record-level operation callable through Record.Call.
type InstanceOp func(ctx context.Context, r *Record, args ...any) (any, error)

// FinderKind selects what a dynamic finder returns.
type FinderKind int

const (
	// FindBy returns the first matching *Record, or nil.
	FindBy FinderKind = iota + 1
	// FilterBy returns a lazy *Query.
	FilterBy
	// AllBy returns the matching records as []*Record.
	AllBy
)

var finderPrefixes = []struct {
	prefix string
	kind   FinderKind
}{
	{"find_by_", FindBy},
	{"filter_by_", FilterBy},
	{"all_by_", AllBy},
}

func (k FinderKind) String() string {
	for _, p := range finderPrefixes {
		if p.kind == k {
			return strings.TrimSuffix(p.prefix, "_")
		}
	}
	return "unknown"
}

// FinderCommand is a parsed dynamic finder name.
type FinderCommand struct {
	Kind   FinderKind
	Column string
}

// ParseFinder matches name against the find_by_, filter_by_ and all_by_
// conventions.
func ParseFinder(name string) (FinderCommand, bool) {
	for _, p := range finderPrefixes {
		column, ok := strings.CutPrefix(name, p.prefix)
		if ok && column != "" {
			return FinderCommand{Kind: p.kind, Column: column}, true
		}
	}
	return FinderCommand{}, false
}

var (
	builtinTypeOps     map[string]TypeOp
	builtinInstanceOps map[string]InstanceOp
)

func init() {
	builtinTypeOps = map[string]TypeOp{
		"find": func(ctx context.Context, t *Type, args ...any) (any, error) {
			if len(args) != 1 {
				return nil, arityError("find", 1, len(args))
			}
			return recordOrNil(t.Find(ctx, args[0]))
		},
		"filter": func(ctx context.Context, t *Type, args ...any) (any, error) {
			if len(args) != 1 {
				return nil, arityError("filter", 1, len(args))
			}
			cond, ok := args[0].(dataset.Cond)
			if !ok {
				return nil, argTypeError("filter", "dataset.Cond", args[0])
			}
			return t.Filter(cond)
		},
		"all": func(ctx context.Context, t *Type, args ...any) (any, error) {
			return t.All(ctx)
		},
		"first": func(ctx context.Context, t *Type, args ...any) (any, error) {
			return recordOrNil(t.First(ctx))
		},
		"count": func(ctx context.Context, t *Type, args ...any) (any, error) {
			return t.Count(ctx)
		},
	}

	builtinInstanceOps = map[string]InstanceOp{
		"save": func(ctx context.Context, r *Record, args ...any) (any, error) {
			return nil, r.save(ctx)
		},
		"destroy": func(ctx context.Context, r *Record, args ...any) (any, error) {
			return nil, r.destroy(ctx)
		},
		"delete": func(ctx context.Context, r *Record, args ...any) (any, error) {
			return nil, r.delete(ctx)
		},
		"refresh": func(ctx context.Context, r *Record, args ...any) (any, error) {
			return nil, r.refresh(ctx)
		},
		"exists": func(ctx context.Context, r *Record, args ...any) (any, error) {
			return r.exists(ctx)
		},
		"set": func(ctx context.Context, r *Record, args ...any) (any, error) {
			if len(args) != 1 {
				return nil, arityError("set", 1, len(args))
			}
			values, ok := args[0].(dataset.Values)
			if !ok {
				return nil, argTypeError("set", "dataset.Values", args[0])
			}
			return nil, r.set(ctx, values)
		},
		"cache_key": func(ctx context.Context, r *Record, args ...any) (any, error) {
			return "", nil
		},
	}
}

// avoids the typed nil a *Record would become inside an interface
func recordOrNil(r *Record, err error) (any, error) {
	if err != nil || r == nil {
		return nil, err
	}
	return r, nil
}

// DefineTypeOp installs a type-level operation on t, shadowing any inherited
// operation or dynamic finder of the same name.
func (t *Type) DefineTypeOp(name string, op TypeOp) {
	t.typeOps.Store(name, op)
}

// DefineInstanceOp installs a record-level operation on t.
func (t *Type) DefineInstanceOp(name string, op InstanceOp) {
	t.instanceOps.Store(name, op)
}

func (t *Type) lookupTypeOp(name string) (TypeOp, bool) {
	for c := t; c != nil; c = c.parent {
		if op, ok := c.typeOps.Load(name); ok {
			return op, true
		}
	}
	op, ok := builtinTypeOps[name]
	return op, ok
}

func (t *Type) lookupInstanceOp(name string) (InstanceOp, bool) {
	for c := t; c != nil; c = c.parent {
		if op, ok := c.instanceOps.Load(name); ok {
			return op, true
		}
	}
	op, ok := builtinInstanceOps[name]
	return op, ok
}

// RespondsTo reports whether name resolves to a defined operation or an
// already installed dynamic finder.
func (t *Type) RespondsTo(name string) bool {
	if _, ok := t.lookupTypeOp(name); ok {
		return true
	}
	_, ok := t.finders.Load(name)
	return ok
}

// Call invokes the type-level operation name. Names that are not defined on
// t, its ancestors or the built-in set are parsed as dynamic finders; the
// parsed command is installed once per name and reused on later calls.
func (t *Type) Call(ctx context.Context, name string, args ...any) (any, error) {
	if op, ok := t.lookupTypeOp(name); ok {
		return op(ctx, t, args...)
	}

	cmd, loaded := t.finders.LoadOrTryCompute(name, func() (FinderCommand, bool) {
		cmd, ok := ParseFinder(name)
		return cmd, !ok
	})
	if cmd.Kind == 0 {
		return nil, noSuchMethodError(t, name)
	}
	if !loaded {
		t.Logger().Debug("installed dynamic finder",
			"type", t.name,
			"method", name,
			"kind", cmd.Kind.String(),
			"column", cmd.Column,
		)
	}

	if len(args) != 1 {
		return nil, arityError(name, 1, len(args))
	}
	return t.execute(ctx, cmd, args[0])
}

func (t *Type) execute(ctx context.Context, cmd FinderCommand, value any) (any, error) {
	q, err := t.Filter(dataset.Cond{cmd.Column: value})
	if err != nil {
		return nil, err
	}

	switch cmd.Kind {
	case FindBy:
		return recordOrNil(q.First(ctx))
	case FilterBy:
		return q, nil
	case AllBy:
		return q.All(ctx)
	}
	return nil, noSuchMethodError(t, cmd.Kind.String()+"_"+cmd.Column)
}

// FindBy returns the first record whose column equals value, or nil. It is
// dispatched like find_by_<column>, so a cached finder applies.
func (t *Type) FindBy(ctx context.Context, column string, value any) (*Record, error) {
	res, err := t.Call(ctx, "find_by_"+column, value)
	if err != nil {
		return nil, err
	}
	r, _ := res.(*Record)
	return r, nil
}

// FilterBy returns a lazy query over the records whose column equals value.
func (t *Type) FilterBy(ctx context.Context, column string, value any) (*Query, error) {
	res, err := t.Call(ctx, "filter_by_"+column, value)
	if err != nil {
		return nil, err
	}
	q, _ := res.(*Query)
	return q, nil
}

// AllBy returns every record whose column equals value.
func (t *Type) AllBy(ctx context.Context, column string, value any) ([]*Record, error) {
	res, err := t.Call(ctx, "all_by_"+column, value)
	if err != nil {
		return nil, err
	}
	records, _ := res.([]*Record)
	return records, nil
}

// Call invokes the record-level operation name: lifecycle operations,
// association accessors and plugin operations.
func (r *Record) Call(ctx context.Context, name string, args ...any) (any, error) {
	op, ok := r.model.lookupInstanceOp(name)
	if !ok {
		return nil, noSuchMethodError(r.model, name)
	}
	return op(ctx, r, args...)
}

// RespondsTo reports whether name resolves to a record-level operation.
func (r *Record) RespondsTo(name string) bool {
	_, ok := r.model.lookupInstanceOp(name)
	return ok
}

package model

import (
	"maps"

	"github.com/goliatone/go-errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// Options configures a plugin for one type.
type Options map[string]any

// Plugin is a capability set composed into a type. Its operations are
// merged into the type's operation tables before Apply runs.
type Plugin interface {
	Name() string
	Apply(t *Type, opts Options) error
	InstanceOps() map[string]InstanceOp
	TypeOps() map[string]TypeOp
}

// Use composes p into t with opts. When Apply fails the type's own
// operations and plugin options are restored to what they were before.
func (t *Type) Use(p Plugin, opts Options) error {
	restoreTypeOps := swapOps(t.typeOps, p.TypeOps())
	restoreInstanceOps := swapOps(t.instanceOps, p.InstanceOps())

	t.mu.Lock()
	prev, hadPrev := t.plugins[p.Name()]
	t.plugins[p.Name()] = maps.Clone(opts)
	t.mu.Unlock()

	if err := p.Apply(t, opts); err != nil {
		restoreTypeOps()
		restoreInstanceOps()

		t.mu.Lock()
		if hadPrev {
			t.plugins[p.Name()] = prev
		} else {
			delete(t.plugins, p.Name())
		}
		t.mu.Unlock()
		return err
	}
	return nil
}

// swapOps stores ops in table and returns a func that puts back the
// entries they replaced.
func swapOps[V any](table *xsync.MapOf[string, V], ops map[string]V) func() {
	replaced := make(map[string]V, len(ops))
	var added []string
	for name, op := range ops {
		if old, ok := table.Load(name); ok {
			replaced[name] = old
		} else {
			added = append(added, name)
		}
		table.Store(name, op)
	}

	return func() {
		for name, op := range replaced {
			table.Store(name, op)
		}
		for _, name := range added {
			table.Delete(name)
		}
	}
}

// PluginOptions returns the options p was applied with on t or the nearest
// ancestor that uses it.
func (t *Type) PluginOptions(name string) (Options, bool) {
	t.mu.RLock()
	opts, ok := t.plugins[name]
	t.mu.RUnlock()

	if ok {
		return opts, true
	}
	if t.parent != nil {
		return t.parent.PluginOptions(name)
	}
	return nil, false
}

// Uses reports whether plugin name was applied to t or an ancestor.
func (t *Type) Uses(name string) bool {
	_, ok := t.PluginOptions(name)
	return ok
}

// Registry maps plugin names to plugins so types can opt in by name.
type Registry struct {
	plugins *xsync.MapOf[string, Plugin]
}

func NewRegistry(plugins ...Plugin) *Registry {
	r := &Registry{plugins: xsync.NewMapOf[string, Plugin]()}
	for _, p := range plugins {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing any plugin with the same name.
func (r *Registry) Register(p Plugin) {
	r.plugins.Store(p.Name(), p)
}

func (r *Registry) Lookup(name string) (Plugin, error) {
	p, ok := r.plugins.Load(name)
	if !ok {
		return nil, errors.Wrap(ErrPluginNotFound, errors.CategoryNotFound, "plugin "+name+" is not registered").
			WithTextCode("PLUGIN_NOT_FOUND").
			WithMetadata(map[string]any{"plugin": name})
	}
	return p, nil
}

// Names returns the registered plugin names in no particular order.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.plugins.Size())
	r.plugins.Range(func(name string, _ Plugin) bool {
		names = append(names, name)
		return true
	})
	return names
}

// Is composes the plugin registered under name into t.
func (t *Type) Is(reg *Registry, name string, opts Options) error {
	p, err := reg.Lookup(name)
	if err != nil {
		return err
	}
	return t.Use(p, opts)
}

package model

import (
	"context"
	"strings"
)

// Event names a lifecycle point hooks can be registered for.
type Event string

const (
	BeforeSave    Event = "before_save"
	AfterSave     Event = "after_save"
	BeforeCreate  Event = "before_create"
	AfterCreate   Event = "after_create"
	BeforeUpdate  Event = "before_update"
	AfterUpdate   Event = "after_update"
	BeforeDestroy Event = "before_destroy"
	AfterDestroy  Event = "after_destroy"
)

func (e Event) before() bool {
	return strings.HasPrefix(string(e), "before_")
}

// Hook runs at a lifecycle point with the record as its subject. A non-nil
// error aborts the remaining hooks and the enclosing transaction.
type Hook func(ctx context.Context, r *Record) error

// AddHook registers hook for event on t. Registrations are never copied to
// subtypes; they are found by walking the ancestor chain when hooks run.
func (t *Type) AddHook(event Event, hook Hook) {
	t.mu.Lock()
	t.hooks[event] = append(t.hooks[event], hook)
	t.mu.Unlock()
}

func (t *Type) BeforeSave(h Hook)    { t.AddHook(BeforeSave, h) }
func (t *Type) AfterSave(h Hook)     { t.AddHook(AfterSave, h) }
func (t *Type) BeforeCreate(h Hook)  { t.AddHook(BeforeCreate, h) }
func (t *Type) AfterCreate(h Hook)   { t.AddHook(AfterCreate, h) }
func (t *Type) BeforeUpdate(h Hook)  { t.AddHook(BeforeUpdate, h) }
func (t *Type) AfterUpdate(h Hook)   { t.AddHook(AfterUpdate, h) }
func (t *Type) BeforeDestroy(h Hook) { t.AddHook(BeforeDestroy, h) }
func (t *Type) AfterDestroy(h Hook)  { t.AddHook(AfterDestroy, h) }

func (t *Type) ownHooks(event Event) []Hook {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Hook(nil), t.hooks[event]...)
}

// hooksFor returns the hooks for event in execution order.
//
// before_* hooks run most recently registered first, the type's own before
// its ancestors'. after_* hooks run in registration order, ancestors' before
// the type's own.
func (t *Type) hooksFor(event Event) []Hook {
	var chain []*Type
	for c := t; c != nil; c = c.parent {
		chain = append(chain, c)
	}

	var out []Hook
	if event.before() {
		for _, c := range chain {
			own := c.ownHooks(event)
			for i := len(own) - 1; i >= 0; i-- {
				out = append(out, own[i])
			}
		}
		return out
	}

	for i := len(chain) - 1; i >= 0; i-- {
		out = append(out, chain[i].ownHooks(event)...)
	}
	return out
}

// HasHooks reports whether t or any ancestor registered a hook for event.
func (t *Type) HasHooks(event Event) bool {
	for c := t; c != nil; c = c.parent {
		c.mu.RLock()
		n := len(c.hooks[event])
		c.mu.RUnlock()
		if n > 0 {
			return true
		}
	}
	return false
}

func (t *Type) runHooks(ctx context.Context, event Event, r *Record) error {
	for _, hook := range t.hooksFor(event) {
		if err := hook(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (t *Type) runAll(ctx context.Context, r *Record, events ...Event) error {
	for _, event := range events {
		if err := t.runHooks(ctx, event, r); err != nil {
			return err
		}
	}
	return nil
}

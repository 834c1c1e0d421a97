package model

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-model/cache"
	"github.com/goliatone/go-model/dataset"
)

// CacheConfig designates the column whose finder reads through the cache.
type CacheConfig struct {
	Column string
	// TTL is the entry expiration. Zero uses the backend default.
	TTL time.Duration
}

func (c CacheConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Column, validation.Required),
		validation.Field(&c.TTL, validation.Min(time.Duration(0))),
	)
}

// CacheConfig returns the nearest cache configuration, or nil.
func (t *Type) CacheConfig() *CacheConfig {
	t.mu.RLock()
	cfg := t.cacheCfg
	t.mu.RUnlock()

	if cfg == nil && t.parent != nil {
		return t.parent.CacheConfig()
	}
	return cfg
}

// CacheBy makes find_by_<column> read through the type's cache backend and
// keeps it coherent: destroy, set and save on records invalidate the
// affected fingerprints once they succeed.
//
// Without a cache backend the finder queries the dataset on every call.
func (t *Type) CacheBy(column string, ttl time.Duration) error {
	cfg := CacheConfig{Column: column, TTL: ttl}
	if err := cfg.Validate(); err != nil {
		return errors.FromOzzoValidation(err, "invalid cache configuration").
			WithTextCode("INVALID_CACHE_CONFIG")
	}

	t.mu.Lock()
	t.cacheCfg = &cfg
	t.mu.Unlock()

	t.typeOps.Store("find_by_"+column, cachedFinder(cfg))
	t.instanceOps.Store("cache_key", func(ctx context.Context, r *Record, args ...any) (any, error) {
		return r.model.fingerprint(column, r.values[column]), nil
	})

	for _, name := range []string{"destroy", "set", "save"} {
		next, _ := t.lookupInstanceOp(name)
		t.instanceOps.Store(name, invalidating(column, next))
	}
	return nil
}

func (t *Type) fingerprint(column string, value any) string {
	return t.KeySerializer().SerializeKey(t.name, column, value)
}

func cachedFinder(cfg CacheConfig) TypeOp {
	name := "find_by_" + cfg.Column
	return func(ctx context.Context, t *Type, args ...any) (any, error) {
		if len(args) != 1 {
			return nil, arityError(name, 1, len(args))
		}
		value := args[0]

		row, found, err := cache.GetOrFetch(ctx, t.CacheService(), t.fingerprint(cfg.Column, value), cfg.TTL,
			func(ctx context.Context) (dataset.Values, bool, error) {
				q, err := t.Filter(dataset.Cond{cfg.Column: value})
				if err != nil {
					return nil, false, err
				}
				row, err := q.ds.First(ctx)
				return row, row != nil, err
			},
			cache.Options{Codec: t.Codec(), Logger: t.Logger()},
		)
		if err != nil || !found {
			return nil, err
		}
		return t.load(row), nil
	}
}

// invalidating wraps next so that, after it succeeds, the entries for the
// column value the record was persisted with and the value it holds now are
// removed.
func invalidating(column string, next InstanceOp) InstanceOp {
	return func(ctx context.Context, r *Record, args ...any) (any, error) {
		keys := r.cacheKeys(column)

		res, err := next(ctx, r, args...)
		if err != nil {
			return res, err
		}

		keys = append(keys, r.cacheKeys(column)...)
		cache.Invalidate(ctx, r.model.CacheService(), r.model.Logger(), dedupe(keys)...)
		return res, nil
	}
}

func (r *Record) cacheKeys(column string) []string {
	keys := []string{r.model.fingerprint(column, r.values[column])}
	if v, ok := r.persisted[column]; ok {
		keys = append(keys, r.model.fingerprint(column, v))
	}
	return keys
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// purgeCache drops every cached entry of the type after a bulk write.
func (t *Type) purgeCache(ctx context.Context) {
	if t.CacheConfig() == nil {
		return
	}
	svc := t.CacheService()
	if svc == nil {
		return
	}
	prefix := t.KeySerializer().Prefix(t.name)
	if !cache.InvalidatePrefix(ctx, svc, t.Logger(), prefix) {
		t.Logger().Warn("cache backend cannot invalidate by prefix",
			"type", t.name,
			"prefix", prefix,
		)
	}
}

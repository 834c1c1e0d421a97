package cache

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

// Options tunes a read-through lookup.
type Options struct {
	// Codec encodes stored values. Defaults to DefaultCodec().
	Codec Codec
	// Logger receives backend failures. A nil logger discards them.
	Logger *slog.Logger
}

func (o Options) codec() Codec {
	if o.Codec == nil {
		return DefaultCodec()
	}
	return o.Codec
}

// GetOrFetch reads key from service and falls back to fetchFn on a miss.
// Fetched values are stored with ttl; lookups that find nothing are not.
//
// Backend and codec failures are logged and treated as misses, so a broken
// cache never fails the read. A nil service always fetches.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, ttl time.Duration, fetchFn FetchFn[T], opts Options) (T, bool, error) {
	codec := opts.codec()

	if service != nil {
		data, found, err := service.Get(ctx, key)
		switch {
		case err != nil:
			logFailure(opts.Logger, "get", key, err)
		case found:
			var cached T
			err := codec.Unmarshal(data, &cached)
			if err == nil {
				return cached, true, nil
			}
			logFailure(opts.Logger, "decode", key, err)
		}
	}

	value, ok, err := fetchFn(ctx)
	if err != nil || !ok {
		return value, ok, err
	}

	if service != nil {
		if data, err := codec.Marshal(value); err != nil {
			logFailure(opts.Logger, "encode", key, err)
		} else if err := service.Set(ctx, key, data, ttl); err != nil {
			logFailure(opts.Logger, "set", key, err)
		}
	}

	return value, true, nil
}

// Invalidate deletes keys from service, logging failures instead of
// returning them. Backends implementing KeysInvalidator get a single batch
// call.
func Invalidate(ctx context.Context, service CacheService, logger *slog.Logger, keys ...string) {
	if service == nil || len(keys) == 0 {
		return
	}
	if inv, ok := service.(KeysInvalidator); ok {
		if err := inv.InvalidateKeys(ctx, keys); err != nil {
			logFailure(logger, "delete", strings.Join(keys, ","), err)
		}
		return
	}
	for _, key := range keys {
		if err := service.Delete(ctx, key); err != nil {
			logFailure(logger, "delete", key, err)
		}
	}
}

// InvalidatePrefix drops every key under prefix when service supports it.
// It reports whether the backend could handle the request.
func InvalidatePrefix(ctx context.Context, service CacheService, logger *slog.Logger, prefix string) bool {
	inv, ok := service.(PrefixInvalidator)
	if !ok {
		return false
	}
	if err := inv.DeleteByPrefix(ctx, prefix); err != nil {
		logFailure(logger, "delete_prefix", prefix, err)
	}
	return true
}

func logFailure(logger *slog.Logger, op, key string, err error) {
	if logger == nil {
		return
	}
	rich := errors.Wrap(err, errors.CategoryExternal, "cache "+strings.ReplaceAll(op, "_", " ")+" failed").
		WithTextCode("CACHE_" + strings.ToUpper(op) + "_FAILED").
		WithSeverity(errors.SeverityWarning).
		WithMetadata(map[string]any{"key": key})
	errors.LogBySeverity(logger, rich)
}

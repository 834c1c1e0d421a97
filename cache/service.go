package cache

import (
	"context"
	"time"
)

// KeySerializer builds a cache fingerprint from a namespace and arbitrary
// parts. It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(namespace string, parts ...any) string
	// Prefix returns the key prefix shared by every key built for namespace.
	Prefix(namespace string) string
}

// CacheService is the key-value backend contract used by the cache-aside
// read path. Implementations own their concurrency safety and expiry.
type CacheService interface {
	// Get returns the stored bytes for key. found is false on a miss.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Set stores value under key. A zero ttl uses the backend default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// PrefixInvalidator is implemented by backends that can drop every key
// sharing a prefix. Bulk writes use it to invalidate a whole namespace.
type PrefixInvalidator interface {
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// KeysInvalidator is implemented by backends that can drop several keys in
// one call.
type KeysInvalidator interface {
	InvalidateKeys(ctx context.Context, keys []string) error
}

// FetchFn loads a value from the source of truth. ok reports whether a value
// was found; lookups that find nothing are never stored.
type FetchFn[T any] func(ctx context.Context) (value T, ok bool, err error)

// Package cache provides the cache-aside building blocks used by model types:
// a byte-oriented backend contract, key fingerprints, value codecs, and a
// generic read-through helper.
//
// # Overview
//
//   - CacheService: Get/Set/Delete over raw bytes with per-entry TTL
//   - PrefixInvalidator: optional bulk removal of every key under a prefix
//   - KeySerializer: builds stable fingerprints from a namespace and parts
//   - Codec: encodes cached values, msgpack by default
//
// NewCacheService returns either the in-process sturdyc backend or the Redis
// backend depending on Config.Backend.
//
// # Basic Usage
//
//	svc, err := cache.NewCacheService(cache.DefaultConfig())
//	if err != nil {
//		return err
//	}
//
//	serializer := cache.NewDefaultKeySerializer()
//	key := serializer.SerializeKey("User", "email", "x@example.com")
//	// key == "User.email.x@example.com"
//
//	values, found, err := cache.GetOrFetch(ctx, svc, key, time.Minute,
//		func(ctx context.Context) (map[string]any, bool, error) {
//			return loadUserByEmail(ctx, "x@example.com")
//		}, cache.Options{Logger: logger})
//
// Lookups that find nothing are never stored, so a later insert is visible on
// the next read without explicit invalidation.
//
// # Key Serialization Strategy
//
// The default key serializer handles:
//
//   - Strings, byte slices and fmt.Stringer values verbatim
//   - time.Time as RFC3339Nano in UTC
//   - Basic kinds with %v
//   - Slices and arrays as [a,b] with recursive elements
//   - Maps as {k=v} sorted for deterministic output
//   - Function and channel values by pointer, stable within one process
//   - Anything else as JSON, falling back to the type name
//
// # Error Handling
//
// A broken cache never fails a read. Backend and codec failures are wrapped
// as go-errors values with a CACHE_*_FAILED text code, logged at warning
// severity, and the lookup falls through to the fetch function.
package cache

// Package model binds record types to database tables and governs the
// lifecycle of their records.
//
// # Declaring types
//
//	users, err := model.New("User",
//		model.WithDatabase(db),
//		model.WithInferredTable(), // "users"
//		model.WithCache(cacheService),
//	)
//
// Types form an inheritance chain through WithParent. Unset metadata (table
// name, primary key, database, cache backend, logger) is read from the
// nearest ancestor that sets it, at the time it is read. The dataset a type
// binds to is memoized on first use and never rebinds to another table.
//
// # Dispatch
//
// Type.Call resolves operations by name: operations defined on the type or
// its ancestors, then the built-in set (find, filter, all, first, count),
// then dynamic finders. find_by_<col>, filter_by_<col> and all_by_<col> are
// parsed once per name and installed on the type:
//
//	rec, err := users.FindBy(ctx, "email", "x@example.com")
//	q, err := users.FilterBy(ctx, "kind", "admin") // lazy
//
// Record.Call does the same for record-level operations: lifecycle
// operations, association accessors and plugin operations.
//
// # Hooks
//
// Hooks run inside the transaction of the operation they belong to. before_*
// hooks run most recently registered first, subtype before ancestor; after_*
// hooks run in registration order, ancestor before subtype. The first hook
// error aborts the operation and is returned unchanged.
//
// # Caching
//
// CacheBy(column, ttl) turns find_by_<column> into a cache-aside read keyed
// by "<TypeName>.<column>.<value>". Destroy, Set and Save invalidate the
// affected keys; bulk writes drop every key of the type. Cache failures are
// logged and never fail a read.
package model

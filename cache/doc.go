// Package cache provides a transparent caching proxy for an object's operations.
//
// An Object exposes its capability set as a table of named Operations. Wrap
// builds a Proxy over it; each operation that carries a Policy is served from
// one of two tiers:
//
//   - TierMemory keeps results in a MemoryStore for the life of the Proxy.
//   - TierFile keeps results in a FileStore: one file per entry in a flat
//     directory, reloaded when a new Proxy opens the same directory.
//
// Concurrent callers asking for the same uncached key are serialized on a
// per-key mutex, so the underlying operation runs at most once per key while
// it is uncached. Errors and nil results are never cached.
//
// # Keys
//
// A Key is the policy key (or the operation name) followed by every argument
// not listed in Policy.Exclude. Arguments are compared by a canonical JSON form
// that tags every value with its Go type, so equal values collapse regardless
// of identity. Calls whose arguments have no canonical form, such as structs
// with unexported fields, run uncached.
//
// # Sequence limits
//
// With Policy.Limit > 0, slice results are truncated before they are stored.
// The caller that computed the result still receives the full slice; callers
// served from the store receive the truncated one.
//
// # Adapters
//
// Typed adapters satisfy the wrapped object's Go interface by delegating to
// Call:
//
//	func (a adapter) List(ctx context.Context) ([]int, error) {
//	    return cache.Call[[]int](ctx, a.proxy, "List")
//	}
package cache

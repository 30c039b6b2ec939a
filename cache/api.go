package cache

import (
	"context"
)

// Loader fetches the resource identified by key. The cache calls it at most
// once per key per load cycle; concurrent Acquire calls for the same key wait
// for that single call.
type Loader[V any] func(ctx context.Context, key string) (V, error)

// Instantiator turns a freshly loaded base resource into an independent
// instance (spawn semantics). On success the instantiator owns base.
type Instantiator[V any] func(ctx context.Context, base V) (V, error)

// Cache is a reference-counted, in-memory resource cache.
// All methods are safe for concurrent use by multiple goroutines.
//
// Acquire is the only method that may block. Release, ReleaseAll, IsCached
// and the diagnostic queries never wait on a load.
type Cache[V any] interface {
	// Acquire returns the resource for key, loading it via load on a miss.
	// Concurrent calls for the same key share one load. Every successful
	// Acquire must be paired with a Release.
	//
	// If ctx is done while the load is in flight, the caller detaches and
	// gets ctx.Err(); the load keeps running and still populates the cache.
	// Keys of the form "name#123" are reserved for instances and rejected
	// with ErrInvalidKey.
	Acquire(ctx context.Context, key string, load Loader[V]) (V, error)

	// AcquireInstance always loads and instantiates a fresh resource for key,
	// tracks it under a new InstanceID with a refcount of 1, and returns both.
	// A nil inst uses the loaded resource itself as the instance.
	AcquireInstance(ctx context.Context, key string, load Loader[V], inst Instantiator[V]) (InstanceID, V, error)

	// Release drops one reference to a key or an InstanceID. When the count
	// reaches zero the release hook runs once and the entry is removed.
	// Unknown or already released ids are logged and ignored; the result
	// reports whether a reference was actually dropped.
	Release(id string) bool

	// ReleaseAll runs the release hook for every tracked resource regardless
	// of refcounts and empties the cache. Loads still in flight are detached:
	// their result is released on arrival and their waiters get ErrFlushed.
	ReleaseAll()

	// Prune releases idle entries: loaded resources whose every waiter gave up
	// before the load finished, so nobody holds a reference.
	Prune() int

	// IsCached reports whether id is loaded and held by at least one caller.
	IsCached(id string) bool

	// SizeOf returns the number of tracked entries for a base key: the shared
	// entry (if any) plus every live instance spawned from key.
	SizeOf(key string) int

	// RefCount returns the current reference count of id (0 if unknown).
	RefCount(id string) int

	// Keys returns a sorted snapshot of every tracked key and InstanceID.
	Keys() []string

	// Len returns the total number of tracked entries across all shards.
	Len() int

	// Stats returns a point-in-time copy of the cache counters.
	Stats() Stats

	// Close releases everything (as ReleaseAll) and marks the cache closed.
	// Subsequent Acquire calls return ErrClosed.
	Close() error
}

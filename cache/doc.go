// Package cache provides a generic, sharded, reference-counted cache for
// resources that are loaded asynchronously: textures, parsed documents,
// connections, compiled templates, anything with an explicit lifetime.
//
// Design
//
//   - Deduplication: each key has at most one load in flight. The first
//     caller creates a Pending entry and starts the Loader; concurrent
//     callers attach to the same entry as waiters and share the result.
//
//   - Lifetime: every successful Acquire adds one reference, every Release
//     drops one. At zero the resource is handed to Options.OnRelease exactly
//     once and the entry disappears. ReleaseAll tears everything down
//     regardless of counts (end of session, scene switch).
//
//   - Failures are not cached: a failed load is delivered to every waiter
//     and the entry is removed, so the next Acquire retries.
//
//   - Instances: AcquireInstance spawns a fresh resource on every call and
//     tracks it under its own InstanceID ("key#seq").
//
//   - Cancellation: a caller whose ctx ends while waiting detaches alone.
//     The load keeps running and populates the cache for later callers.
//
//   - Concurrency: entries are spread over power-of-two shards, each guarded
//     by a mutex. Hooks run outside shard locks.
//
// Basic usage
//
//	c := cache.New[*Texture](cache.Options[*Texture]{
//	    OnRelease: func(_ string, t *Texture) { t.Free() },
//	})
//	tex, err := c.Acquire(ctx, "ui/logo.png", loadTexture)
//	if err != nil {
//	    return err
//	}
//	defer c.Release("ui/logo.png")
//
// Spawning instances
//
//	id, enemy, err := c.AcquireInstance(ctx, "prefabs/enemy", loadPrefab, clonePrefab)
//	...
//	c.Release(string(id))
//
// Exporting metrics (Prometheus adapter)
//
//	m := prom.New(nil, "rescache", "assets", nil) // implements Metrics
//	c := cache.New[[]byte](cache.Options[[]byte]{Metrics: m})
package cache

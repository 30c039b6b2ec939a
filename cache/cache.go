package cache

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/rescache/internal/util"
)

// cache is a sharded, reference-counted resource cache.
// All methods are safe for concurrent use by multiple goroutines.
type cache[V any] struct {
	shards []*shard[V]
	closed atomic.Bool

	opt Options[V]
	log Logger

	seq     atomic.Uint64 // instance sequence
	entries atomic.Int64  // tracked entries, for Metrics.Size

	loads      util.PaddedAtomicInt64
	loadErrors util.PaddedAtomicInt64
	releases   util.PaddedAtomicInt64
}

// New constructs a cache with the provided Options.
// Defaults:
//   - nil Metrics  -> NoopMetrics
//   - nil Logger   -> NopLogger
//   - Shards <= 0  -> auto, rounded up to the next power of two
func New[V any](opt Options[V]) Cache[V] {
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = NopLogger{}
	}
	opt.Shards = util.ShardCount(opt.Shards)

	cs := make([]*shard[V], opt.Shards)
	for i := range cs {
		cs[i] = newShard[V]()
	}
	return &cache[V]{shards: cs, opt: opt, log: opt.Logger}
}

// ---- Cache[V] implementation ----

// Acquire returns the resource for key, sharing one load among concurrent
// callers. See Cache.Acquire.
func (c *cache[V]) Acquire(ctx context.Context, key string, load Loader[V]) (V, error) {
	var zero V
	if c.closed.Load() {
		return zero, ErrClosed
	}
	if load == nil {
		return zero, ErrNilLoader
	}
	if isInstanceID(key) {
		return zero, &LoadError{Key: key, Kind: ErrInvalidKey}
	}

	s := c.getShard(key)
	e, hit, leader, err := s.acquire(key)
	if err != nil {
		return zero, err
	}
	if hit {
		c.opt.Metrics.Hit()
		return e.val, nil
	}
	c.opt.Metrics.Miss()

	if leader {
		c.entries.Add(1)
		c.opt.Metrics.Size(int(c.entries.Load()))
		// The load outlives the caller: abandoning a wait must not abort it.
		go c.load(context.WithoutCancel(ctx), s, e, load)
	}
	return c.wait(ctx, s, e)
}

// wait blocks until e resolves or ctx is done.
func (c *cache[V]) wait(ctx context.Context, s *shard[V], e *entry[V]) (V, error) {
	select {
	case <-e.done:
		return e.result()
	case <-ctx.Done():
	}
	if s.abandon(e) {
		var zero V
		return zero, ctx.Err()
	}
	// resolved concurrently with the cancellation: we hold a reference
	<-e.done
	return e.result()
}

func (e *entry[V]) result() (V, error) {
	if e.err != nil {
		var zero V
		return zero, e.err
	}
	return e.val, nil
}

// load runs the loader for a Pending entry and publishes the outcome.
func (c *cache[V]) load(ctx context.Context, s *shard[V], e *entry[V], load Loader[V]) {
	c.log.Debug("load start", Fields{"key": e.id})
	start := time.Now()
	v, err := callLoader(ctx, e.id, load)
	dur := time.Since(start)

	c.opt.Metrics.Load(err == nil, dur)
	if err != nil {
		err = &LoadError{Key: e.id, Kind: ErrFetchFailed, Err: err}
		c.log.Warn("load failed", Fields{"key": e.id, "err": err, "took": dur})
		c.dropEntries(1)
	}

	abandoned := s.resolve(e, v, err)
	// after resolve: Stats must not run ahead of the entry state
	c.loads.Add(1)
	if err != nil {
		c.loadErrors.Add(1)
	}
	if abandoned {
		c.dropEntries(1)
		c.log.Info("load finished after flush", Fields{"key": e.id, "took": dur})
		c.releaseValue(e.id, false, v, ReleaseAbandoned)
		close(e.done)
		return
	}
	if err == nil {
		c.log.Debug("load ok", Fields{"key": e.id, "took": dur})
	}
}

// Release drops one reference. See Cache.Release.
func (c *cache[V]) Release(id string) bool {
	if c.closed.Load() {
		return false
	}
	s := c.getShard(id)
	e, found := s.release(id)
	if !found {
		f := Fields{"id": id, "err": ErrUnknownIdentifier}
		if st, _, ok := s.lookup(id); ok {
			f["state"] = st.String()
		}
		c.log.Warn("release ignored", f)
		return false
	}
	if e != nil {
		c.dropEntries(1)
		c.releaseValue(e.id, e.inst, e.val, ReleaseRefZero)
	}
	return true
}

// ReleaseAll releases every tracked resource and empties the cache.
func (c *cache[V]) ReleaseAll() { c.flush(false) }

// flush empties every shard. With closeShards set the shards also refuse
// further inserts, so nothing can slip in behind a concurrent Close.
func (c *cache[V]) flush(closeShards bool) {
	n := 0
	for _, s := range c.shards {
		victims := s.flush(closeShards)
		for _, e := range victims {
			c.releaseValue(e.id, e.inst, e.val, ReleaseFlush)
		}
		n += len(victims)
	}
	// detached Pending entries are accounted for when their load resolves
	c.dropEntries(n)
	c.log.Info("release all", Fields{"released": n})
}

// Prune releases loaded entries that nobody holds.
func (c *cache[V]) Prune() int {
	n := 0
	for _, s := range c.shards {
		for _, e := range s.prune() {
			c.releaseValue(e.id, false, e.val, ReleasePrune)
			n++
		}
	}
	c.dropEntries(n)
	if n > 0 {
		c.log.Debug("prune", Fields{"released": n})
	}
	return n
}

// IsCached reports whether id is Ready and referenced.
func (c *cache[V]) IsCached(id string) bool {
	st, refs, ok := c.getShard(id).lookup(id)
	return ok && st == stateReady && refs > 0
}

// RefCount returns the reference count of id.
func (c *cache[V]) RefCount(id string) int {
	_, refs, _ := c.getShard(id).lookup(id)
	return refs
}

// SizeOf counts the shared entry for key plus every instance spawned from it.
// Instances hash by InstanceID, so every shard is visited.
func (c *cache[V]) SizeOf(key string) int {
	n := 0
	for _, s := range c.shards {
		n += s.countBase(key)
	}
	return n
}

// Keys returns a sorted snapshot of tracked ids.
func (c *cache[V]) Keys() []string {
	out := make([]string, 0, c.Len())
	for _, s := range c.shards {
		out = s.keys(out)
	}
	sort.Strings(out)
	return out
}

// Len returns the total number of tracked entries across all shards.
func (c *cache[V]) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.Len()
	}
	return total
}

// Stats aggregates per-shard and cache-level counters.
func (c *cache[V]) Stats() Stats {
	st := Stats{
		Loads:      c.loads.Load(),
		LoadErrors: c.loadErrors.Load(),
		Releases:   c.releases.Load(),
	}
	for _, s := range c.shards {
		st.Hits += s.hits.Load()
		st.Misses += s.misses.Load()
	}
	st.Entries = c.Len()
	return st
}

// Close releases everything and marks the cache closed.
// Calling Close more than once is a no-op.
func (c *cache[V]) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.flush(true)
	return nil
}

// ---- helpers ----

// getShard picks a shard by hashing the id and masking with len-1.
// len(c.shards) is guaranteed to be a power of two.
func (c *cache[V]) getShard(id string) *shard[V] {
	return c.shards[util.ShardIndex(util.Fnv64a(id), len(c.shards))]
}

func (c *cache[V]) dropEntries(n int) {
	if n == 0 {
		return
	}
	c.opt.Metrics.Size(int(c.entries.Add(-int64(n))))
}

// releaseValue hands v to the release hook. Hooks run outside shard locks;
// a panicking hook is logged so teardown of the remaining entries continues.
func (c *cache[V]) releaseValue(id string, inst bool, v V, reason ReleaseReason) {
	c.releases.Add(1)
	c.opt.Metrics.Release(reason)
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("release hook panicked", Fields{"id": id, "panic": r})
		}
	}()
	switch {
	case inst && c.opt.OnDestroy != nil:
		c.opt.OnDestroy(InstanceID(id), v)
	case c.opt.OnRelease != nil:
		c.opt.OnRelease(id, v)
	}
}

// callLoader runs load, converting a panic into an error so that waiters
// are never left blocked on an entry that cannot resolve.
func callLoader[V any](ctx context.Context, key string, load Loader[V]) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return load(ctx, key)
}

package cache

import (
	"time"
)

// ReleaseReason explains why a resource was handed to the release hook.
type ReleaseReason int

const (
	// ReleaseRefZero: the last holder called Release.
	ReleaseRefZero ReleaseReason = iota
	// ReleaseFlush: removed by ReleaseAll or Close regardless of refcount.
	ReleaseFlush
	// ReleasePrune: idle entry (loaded, never claimed) removed by Prune.
	ReleasePrune
	// ReleaseAbandoned: the resource never became visible to callers
	// (load finished after a flush, or instantiation failed).
	ReleaseAbandoned
)

// String returns the reason as used in metric labels.
func (r ReleaseReason) String() string {
	switch r {
	case ReleaseRefZero:
		return "refzero"
	case ReleaseFlush:
		return "flush"
	case ReleasePrune:
		return "prune"
	case ReleaseAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	// Load observes one finished loader call.
	Load(ok bool, d time.Duration)
	Release(reason ReleaseReason)
	Size(entries int)
}

// Options configures the cache behavior. Zero values are safe;
// defaults are applied in New():
//   - Shards <= 0  => auto (≈ 2*GOMAXPROCS, rounded up to a power of two)
//   - nil Metrics  => NoopMetrics
//   - nil Logger   => NopLogger
type Options[V any] struct {
	// Shards defines the number of shards. If 0, an automatic value is chosen.
	// Non power-of-two values are rounded up.
	Shards int

	// OnRelease is the release hook. It runs exactly once per entry when the
	// entry leaves the cache, outside of any shard lock.
	OnRelease func(id string, v V)

	// OnDestroy, if set, replaces OnRelease for instance entries.
	OnDestroy func(id InstanceID, v V)

	// Observability
	Metrics Metrics
	Logger  Logger
}

package cache

import (
	"context"
	"math/rand"
	"strconv"
	"sync/atomic"
	"testing"
)

// benchmarkAcquireRelease exercises Acquire/Release pairs against a warm
// cache. Every key stays held by one preloaded reference, so the mix measures
// the hit path plus refcount bookkeeping.
func benchmarkAcquireRelease(b *testing.B, keys int) {
	c := New[string](Options[string]{})
	b.Cleanup(func() { _ = c.Close() })

	load := func(_ context.Context, k string) (string, error) { return k, nil }
	ctx := context.Background()
	names := make([]string, keys)
	for i := range names {
		names[i] = "k:" + strconv.Itoa(i)
		if _, err := c.Acquire(ctx, names[i], load); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		for pb.Next() {
			k := names[r.Intn(len(names))]
			if _, err := c.Acquire(ctx, k, load); err == nil {
				c.Release(k)
			}
		}
	})
}

func BenchmarkCache_AcquireRelease_1k(b *testing.B)   { benchmarkAcquireRelease(b, 1_000) }
func BenchmarkCache_AcquireRelease_100k(b *testing.B) { benchmarkAcquireRelease(b, 100_000) }

// BenchmarkCache_AcquireInstance measures the spawn path (load + insert +
// release) with a trivial loader.
func BenchmarkCache_AcquireInstance(b *testing.B) {
	c := New[int](Options[int]{})
	b.Cleanup(func() { _ = c.Close() })
	load := func(context.Context, string) (int, error) { return 1, nil }

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			id, _, err := c.AcquireInstance(ctx, "prefab", load, nil)
			if err == nil {
				c.Release(string(id))
			}
		}
	})
}

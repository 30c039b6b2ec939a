// Package asset manages decoded resources on top of a Source and a Codec:
// loading through the reference-counted cache, spawning instances, and
// pre-downloading with progress.
package asset

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/rescache/cache"
	"github.com/IvanBrykalov/rescache/codec"
	"github.com/IvanBrykalov/rescache/source"
)

// ErrNilSource is returned by New without a source or codec.
var ErrNilSource = errors.New("asset: nil source or codec")

// Options configures a Manager. The zero value builds a default cache.
type Options[V any] struct {
	// Cache is used when set; otherwise one is built from CacheOptions.
	Cache        cache.Cache[V]
	CacheOptions cache.Options[V]

	// DownloadParallelism bounds DownloadMany (default 4).
	DownloadParallelism int

	Logger cache.Logger
}

// Manager loads decoded resources from a Source through a reference-counted
// cache and pre-downloads them. It is safe for concurrent use.
type Manager[V any] struct {
	cache cache.Cache[V]
	src   source.Source
	load  cache.Loader[V]
	log   cache.Logger
	par   int
}

// New wires src and c into a Manager, building a cache unless opt.Cache is set.
func New[V any](src source.Source, c codec.Codec[V], opt Options[V]) (*Manager[V], error) {
	if src == nil || c == nil {
		return nil, ErrNilSource
	}
	log := opt.Logger
	if log == nil {
		log = cache.NopLogger{}
	}
	cc := opt.Cache
	if cc == nil {
		if opt.CacheOptions.Logger == nil {
			opt.CacheOptions.Logger = log
		}
		cc = cache.New[V](opt.CacheOptions)
	}
	par := opt.DownloadParallelism
	if par <= 0 {
		par = 4
	}
	return &Manager[V]{cache: cc, src: src, load: Loader[V](src, c), log: log, par: par}, nil
}

// Cache exposes the underlying cache for inspection.
func (m *Manager[V]) Cache() cache.Cache[V] { return m.cache }

// Load acquires the shared resource for key. Pair with Release(key).
func (m *Manager[V]) Load(ctx context.Context, key string) (V, error) {
	return m.cache.Acquire(ctx, key, m.load)
}

// Instantiate spawns an independent resource from key. Pair with
// Release(string(id)).
func (m *Manager[V]) Instantiate(ctx context.Context, key string, inst cache.Instantiator[V]) (cache.InstanceID, V, error) {
	return m.cache.AcquireInstance(ctx, key, m.load, inst)
}

// Release drops one reference to a key or an InstanceID.
func (m *Manager[V]) Release(id string) bool { return m.cache.Release(id) }

// ReleaseAll releases every loaded resource and instance.
func (m *Manager[V]) ReleaseAll() { m.cache.ReleaseAll() }

// Loaded returns the tracked keys and instance ids.
func (m *Manager[V]) Loaded() []string { return m.cache.Keys() }

// DownloadSize returns how many bytes key still needs to transfer.
func (m *Manager[V]) DownloadSize(ctx context.Context, key string) (int64, error) {
	n, err := m.src.Size(ctx, key)
	if err != nil {
		m.log.Warn("download size failed", cache.Fields{"key": key, "err": err})
		return -1, err
	}
	return n, nil
}

// IsDownloaded reports whether key can be served without a transfer.
func (m *Manager[V]) IsDownloaded(ctx context.Context, key string) (bool, error) {
	n, err := m.DownloadSize(ctx, key)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

// Download pre-fetches key without decoding or caching it.
func (m *Manager[V]) Download(ctx context.Context, key string, progress source.ProgressFunc) error {
	_, err := source.Download(ctx, m.src, key, progress)
	if err != nil {
		m.log.Warn("download failed", cache.Fields{"key": key, "err": err})
	}
	return err
}

// DownloadMany pre-fetches keys concurrently. progress receives aggregated
// bytes across all keys and is never called concurrently. Keys with nothing
// to transfer are skipped. The first error cancels the remaining downloads.
func (m *Manager[V]) DownloadMany(ctx context.Context, keys []string, progress source.ProgressFunc) error {
	sizes := make([]int64, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.par)
	for i, key := range keys {
		g.Go(func() error {
			n, err := m.DownloadSize(gctx, key)
			sizes[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var (
		mu    sync.Mutex
		done  = make([]int64, len(keys))
		total int64
	)
	for _, n := range sizes {
		total += n
	}
	report := func(i int, d int64) {
		if progress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		done[i] = d
		var sum int64
		for _, v := range done {
			sum += v
		}
		progress(sum, total)
	}

	if progress != nil {
		progress(0, total)
	}
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(m.par)
	for i, key := range keys {
		if sizes[i] == 0 {
			continue
		}
		g.Go(func() error {
			return m.Download(gctx, key, func(d, _ int64) {
				// never report past the size announced up front
				if d > sizes[i] {
					d = sizes[i]
				}
				report(i, d)
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	m.log.Info("download many", cache.Fields{"keys": len(keys), "bytes": total})
	return nil
}

// Close releases every resource, then closes the source.
func (m *Manager[V]) Close(ctx context.Context) error {
	return errors.Join(m.cache.Close(), m.src.Close(ctx))
}

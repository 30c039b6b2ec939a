// Package tiered combines a remote Source with a local, writable one.
// Fetch serves the local tier and downloads misses from the remote tier,
// writing them through. Size answers how many bytes are still missing
// locally.
package tiered

import (
	"context"
	"errors"
	"sync"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/IvanBrykalov/rescache/cache"
	"github.com/IvanBrykalov/rescache/internal/singleflight"
	"github.com/IvanBrykalov/rescache/source"
)

// Local is the writable tier.
type Local interface {
	source.Source
	source.Writer
}

// Config wires the two tiers. Remote and Local are required.
type Config struct {
	Remote source.Source
	Local  Local

	// SizeTTL bounds how long remote sizes are memoised (default 1m).
	SizeTTL time.Duration
	// SizeEntries caps memoised sizes (default 4096).
	SizeEntries int64

	Logger cache.Logger
}

// ErrNilTier is returned by New when a tier is missing.
var ErrNilTier = errors.New("tiered source: nil remote or local")

// Tiered serves keys from Local, downloading misses from Remote.
// It is safe for concurrent use.
type Tiered struct {
	remote source.Source
	local  Local
	log    cache.Logger

	sizes   *rc.Cache
	sizeTTL time.Duration

	sizeFlight singleflight.Group[int64]
	dlFlight   singleflight.Group[[]byte]

	mu        sync.Mutex
	listeners map[string]map[int]source.ProgressFunc
	nextID    int
}

var (
	_ source.Source     = (*Tiered)(nil)
	_ source.Downloader = (*Tiered)(nil)
)

// New builds a Tiered source and its size memo.
func New(cfg Config) (*Tiered, error) {
	if cfg.Remote == nil || cfg.Local == nil {
		return nil, ErrNilTier
	}
	ttl := cfg.SizeTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	n := cfg.SizeEntries
	if n <= 0 {
		n = 4096
	}
	sizes, err := rc.NewCache(&rc.Config{
		NumCounters: n * 10,
		MaxCost:     n,
		BufferItems: 64,

		// cost is a count of entries, not bytes
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = cache.NopLogger{}
	}
	return &Tiered{
		remote:    cfg.Remote,
		local:     cfg.Local,
		log:       log,
		sizes:     sizes,
		sizeTTL:   ttl,
		listeners: make(map[string]map[int]source.ProgressFunc),
	}, nil
}

// Fetch serves key locally, downloading it first when missing.
func (t *Tiered) Fetch(ctx context.Context, key string) ([]byte, error) {
	return t.Download(ctx, key, nil)
}

// Size returns 0 when key is local, else the remote size. Remote answers are
// memoised for SizeTTL and concurrent queries share one remote call.
func (t *Tiered) Size(ctx context.Context, key string) (int64, error) {
	_, err := t.local.Size(ctx, key)
	if err == nil {
		return 0, nil
	}
	if !errors.Is(err, source.ErrNotFound) {
		return 0, err
	}
	if v, ok := t.sizes.Get(key); ok {
		if n, ok := v.(int64); ok {
			return n, nil
		}
		t.sizes.Del(key)
	}
	n, _, err := t.sizeFlight.Do(ctx, key, func(ctx context.Context) (int64, error) {
		n, err := t.remote.Size(ctx, key)
		if err != nil {
			return 0, err
		}
		t.sizes.SetWithTTL(key, n, 1, t.sizeTTL)
		t.sizes.Wait()
		return n, nil
	})
	return n, err
}

// Download returns the bytes for key, fetching them from the remote tier
// and storing them locally when needed. progress receives cumulative
// progress; callers joining an in-flight download see its remaining updates.
func (t *Tiered) Download(ctx context.Context, key string, progress source.ProgressFunc) ([]byte, error) {
	b, err := t.local.Fetch(ctx, key)
	if err == nil {
		if progress != nil {
			n := int64(len(b))
			progress(n, n)
		}
		return b, nil
	}
	if !errors.Is(err, source.ErrNotFound) {
		return nil, err
	}

	if progress != nil {
		defer t.listen(key, progress)()
	}
	b, _, err = t.dlFlight.Do(ctx, key, func(ctx context.Context) ([]byte, error) {
		return t.download(ctx, key)
	})
	return b, err
}

func (t *Tiered) download(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	t.log.Debug("download start", cache.Fields{"key": key})
	b, err := source.Download(ctx, t.remote, key, func(done, total int64) {
		t.broadcast(key, done, total)
	})
	if err != nil {
		t.log.Warn("download failed", cache.Fields{"key": key, "err": err})
		return nil, err
	}
	if err := t.local.Put(ctx, key, b); err != nil {
		t.log.Error("write-through failed", cache.Fields{"key": key, "err": err})
		return nil, err
	}
	t.sizes.Del(key)
	t.log.Info("downloaded", cache.Fields{"key": key, "bytes": len(b), "took": time.Since(start)})
	return b, nil
}

// listen registers progress for key and returns its removal.
func (t *Tiered) listen(key string, progress source.ProgressFunc) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	m := t.listeners[key]
	if m == nil {
		m = make(map[int]source.ProgressFunc)
		t.listeners[key] = m
	}
	m[id] = progress
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(m, id)
		if len(t.listeners[key]) == 0 {
			delete(t.listeners, key)
		}
	}
}

func (t *Tiered) broadcast(key string, done, total int64) {
	t.mu.Lock()
	fns := make([]source.ProgressFunc, 0, len(t.listeners[key]))
	for _, fn := range t.listeners[key] {
		fns = append(fns, fn)
	}
	t.mu.Unlock()
	for _, fn := range fns {
		fn(done, total)
	}
}

// Evict removes key from the local tier so the next Fetch downloads it again.
func (t *Tiered) Evict(ctx context.Context, key string) error {
	t.sizes.Del(key)
	return t.local.Delete(ctx, key)
}

// Close closes both tiers.
func (t *Tiered) Close(ctx context.Context) error {
	t.sizes.Close()
	return errors.Join(t.remote.Close(ctx), t.local.Close(ctx))
}

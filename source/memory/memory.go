// Package memory is an in-process Source backed by allegro/bigcache.
// It suits preloaded asset packs and tests; entries expire after LifeWindow.
package memory

import (
	"context"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/IvanBrykalov/rescache/source"
)

// Memory is a Source and Writer over a bigcache instance.
type Memory struct {
	c *bc.BigCache
}

var (
	_ source.Source = (*Memory)(nil)
	_ source.Writer = (*Memory)(nil)
)

// Config tunes the underlying bigcache. Zero values keep its defaults.
type Config struct {
	LifeWindow         time.Duration // 0 => entries never expire
	CleanWindow        time.Duration
	MaxEntrySize       int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

// New allocates the cache.
func New(cfg Config) (*Memory, error) {
	life := cfg.LifeWindow
	if life <= 0 {
		life = 100 * 365 * 24 * time.Hour
	}
	conf := bc.DefaultConfig(life)
	conf.Verbose = false
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}
	c, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	return &Memory{c: c}, nil
}

// Fetch returns a copy of the stored bytes or source.ErrNotFound.
func (m *Memory) Fetch(_ context.Context, key string) ([]byte, error) {
	b, err := m.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, source.ErrNotFound
	}
	return b, err
}

// Size is 0 for present keys: nothing needs to be downloaded.
func (m *Memory) Size(ctx context.Context, key string) (int64, error) {
	if _, err := m.Fetch(ctx, key); err != nil {
		return 0, err
	}
	return 0, nil
}

// Put stores value under key, replacing any previous value.
func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	return m.c.Set(key, value)
}

// Delete removes key. Missing keys are not an error.
func (m *Memory) Delete(_ context.Context, key string) error {
	err := m.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}

// Len returns the number of stored entries.
func (m *Memory) Len() int { return m.c.Len() }

// Close stops bigcache's cleanup goroutine.
func (m *Memory) Close(_ context.Context) error { return m.c.Close() }

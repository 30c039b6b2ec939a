// Package source defines where asset bytes come from.
//
// A Source is the opaque fetch collaborator of the resource cache: it knows
// how to produce the bytes for a key and how many bytes would have to be
// downloaded to do so. Implementations live in the subpackages (memory, bolt,
// redis, web, tiered).
package source

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Fetch and Size when the key does not exist.
var ErrNotFound = errors.New("source: not found")

// Source is a read-mostly byte store keyed by asset address.
// Implementations must be safe for concurrent use.
type Source interface {
	// Fetch returns the bytes for key or ErrNotFound.
	Fetch(ctx context.Context, key string) ([]byte, error)

	// Size returns how many bytes must be transferred before Fetch can be
	// served locally. Local sources return 0 for present keys.
	Size(ctx context.Context, key string) (int64, error)

	// Close releases resources.
	Close(ctx context.Context) error
}

// Writer is implemented by sources that can store bytes (local tiers,
// seeding in tests and tooling).
type Writer interface {
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// ProgressFunc receives cumulative progress of a transfer. total is -1 when
// the size is not known in advance.
type ProgressFunc func(done, total int64)

// Downloader is implemented by sources that can report progress while
// fetching (tiered downloads, HTTP).
type Downloader interface {
	Download(ctx context.Context, key string, progress ProgressFunc) ([]byte, error)
}

// Download fetches key from src, reporting progress when possible. Sources
// without native progress report the start and the end of the transfer.
func Download(ctx context.Context, src Source, key string, progress ProgressFunc) ([]byte, error) {
	if progress == nil {
		progress = func(int64, int64) {}
	}
	if d, ok := src.(Downloader); ok {
		return d.Download(ctx, key, progress)
	}
	total, err := src.Size(ctx, key)
	if err != nil {
		total = -1
	}
	progress(0, total)
	b, err := src.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	n := int64(len(b))
	if total < 0 {
		total = n
	}
	progress(total, total)
	return b, nil
}

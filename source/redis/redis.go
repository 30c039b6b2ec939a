// Package redis is a remote Source backed by redis/go-redis. Values are plain
// strings; Size reports their length since every byte has to cross the wire.
package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/IvanBrykalov/rescache/source"
)

// ErrNilClient is returned by New without a client.
var ErrNilClient = errors.New("redis source: nil client")

// Redis is a Source and Writer over a go-redis client.
type Redis struct {
	rdb         goredis.UniversalClient
	prefix      string
	ttl         time.Duration
	closeClient bool
}

var (
	_ source.Source = (*Redis)(nil)
	_ source.Writer = (*Redis)(nil)
)

// Config configures a Redis source.
type Config struct {
	Client goredis.UniversalClient
	// Prefix is prepended to every key ("assets:" keeps packs apart).
	Prefix string
	// TTL applies to Put; <= 0 means no expiry.
	TTL         time.Duration
	CloseClient bool // set true only if this source exclusively owns the client
}

// New wraps cfg.Client.
func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	return &Redis{rdb: cfg.Client, prefix: cfg.Prefix, ttl: cfg.TTL, closeClient: cfg.CloseClient}, nil
}

func (r *Redis) key(k string) string { return r.prefix + k }

// Fetch GETs key; a redis nil reply maps to source.ErrNotFound.
func (r *Redis) Fetch(ctx context.Context, key string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, source.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Size returns the stored length of key. STRLEN answers 0 for missing keys,
// so existence is checked in the same round trip.
func (r *Redis) Size(ctx context.Context, key string) (int64, error) {
	k := r.key(key)
	var (
		exists *goredis.IntCmd
		strlen *goredis.IntCmd
	)
	_, err := r.rdb.Pipelined(ctx, func(p goredis.Pipeliner) error {
		exists = p.Exists(ctx, k)
		strlen = p.StrLen(ctx, k)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if exists.Val() == 0 {
		return 0, source.ErrNotFound
	}
	return strlen.Val(), nil
}

// Put SETs key with the configured TTL.
func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	ttl := r.ttl
	if ttl < 0 {
		ttl = 0
	}
	return r.rdb.Set(ctx, r.key(key), value, ttl).Err()
}

// Delete removes key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.key(key)).Err()
}

// Close releases the underlying redis client only when this source owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (r *Redis) Close(context.Context) error {
	if r.closeClient {
		if err := r.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

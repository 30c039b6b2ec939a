package asset

import (
	"context"
	"fmt"

	"github.com/IvanBrykalov/rescache/cache"
	"github.com/IvanBrykalov/rescache/codec"
	"github.com/IvanBrykalov/rescache/source"
)

// Loader returns a cache.Loader that fetches key from src and decodes it.
func Loader[V any](src source.Source, c codec.Codec[V]) cache.Loader[V] {
	return func(ctx context.Context, key string) (V, error) {
		var zero V
		b, err := src.Fetch(ctx, key)
		if err != nil {
			return zero, err
		}
		v, err := c.Decode(b)
		if err != nil {
			return zero, fmt.Errorf("decode %q: %w", key, err)
		}
		return v, nil
	}
}

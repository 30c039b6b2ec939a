package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/rescache/source"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "assets.db"), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestStore_PutFetchDelete(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	_, err := s.Fetch(ctx, "ui/logo")
	assert.ErrorIs(t, err, source.ErrNotFound)
	_, err = s.Size(ctx, "ui/logo")
	assert.ErrorIs(t, err, source.ErrNotFound)

	require.NoError(t, s.Put(ctx, "ui/logo", []byte("png-bytes")))
	require.NoError(t, s.Put(ctx, "ui/bg", []byte("bg")))

	b, err := s.Fetch(ctx, "ui/logo")
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(b))

	n, err := s.Size(ctx, "ui/logo")
	require.NoError(t, err)
	assert.Zero(t, n)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ui/bg", "ui/logo"}, keys)

	require.NoError(t, s.Delete(ctx, "ui/logo"))
	ok, err := s.Has(ctx, "ui/logo")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "assets.db")

	s, err := Open(path, Options{Bucket: "pack"})
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "k", []byte("v")))
	require.NoError(t, s.Close(ctx))
	require.NoError(t, s.Close(ctx))

	s, err = Open(path, Options{Bucket: "pack"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })
	b, err := s.Fetch(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(b))
}

func TestStore_CanceledContext(t *testing.T) {
	s := openTemp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Fetch(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

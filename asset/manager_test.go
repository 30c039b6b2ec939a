package asset

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/rescache/cache"
	"github.com/IvanBrykalov/rescache/codec"
	"github.com/IvanBrykalov/rescache/source"
	"github.com/IvanBrykalov/rescache/source/bolt"
	"github.com/IvanBrykalov/rescache/source/tiered"
)

type sprite struct {
	Name string `json:"name"`
	W    int    `json:"w"`
	H    int    `json:"h"`
}

// remote answers Size with the stored length, like an HTTP HEAD.
type remote map[string][]byte

func (r remote) Fetch(_ context.Context, key string) ([]byte, error) {
	b, ok := r[key]
	if !ok {
		return nil, source.ErrNotFound
	}
	return b, nil
}

func (r remote) Size(_ context.Context, key string) (int64, error) {
	b, ok := r[key]
	if !ok {
		return 0, source.ErrNotFound
	}
	return int64(len(b)), nil
}

func (remote) Close(context.Context) error { return nil }

func newTieredSource(t *testing.T, r remote) *tiered.Tiered {
	t.Helper()
	local, err := bolt.Open(filepath.Join(t.TempDir(), "assets.db"), bolt.Options{})
	require.NoError(t, err)
	tr, err := tiered.New(tiered.Config{Remote: r, Local: local})
	require.NoError(t, err)
	return tr
}

func newManager(t *testing.T, src source.Source, opt Options[*sprite]) *Manager[*sprite] {
	t.Helper()
	m, err := New[*sprite](src, codec.JSON[*sprite]{}, opt)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m
}

func TestManager_LoadRelease(t *testing.T) {
	var (
		mu       sync.Mutex
		released []string
	)
	src := remote{"ui/logo": []byte(`{"name":"logo","w":64,"h":32}`)}
	m := newManager(t, src, Options[*sprite]{
		CacheOptions: cache.Options[*sprite]{
			OnRelease: func(id string, _ *sprite) {
				mu.Lock()
				released = append(released, id)
				mu.Unlock()
			},
		},
	})
	ctx := context.Background()

	a, err := m.Load(ctx, "ui/logo")
	require.NoError(t, err)
	b, err := m.Load(ctx, "ui/logo")
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, &sprite{Name: "logo", W: 64, H: 32}, a)
	assert.Equal(t, 2, m.Cache().RefCount("ui/logo"))
	assert.Equal(t, []string{"ui/logo"}, m.Loaded())

	assert.True(t, m.Release("ui/logo"))
	assert.True(t, m.Release("ui/logo"))
	assert.False(t, m.Release("ui/logo"))
	mu.Lock()
	assert.Equal(t, []string{"ui/logo"}, released)
	mu.Unlock()
	assert.Empty(t, m.Loaded())
}

func TestManager_LoadErrors(t *testing.T) {
	src := remote{"bad": []byte(`{not json`)}
	m := newManager(t, src, Options[*sprite]{})
	ctx := context.Background()

	_, err := m.Load(ctx, "missing")
	assert.ErrorIs(t, err, cache.ErrFetchFailed)
	assert.ErrorIs(t, err, source.ErrNotFound)

	_, err = m.Load(ctx, "bad")
	assert.ErrorIs(t, err, cache.ErrFetchFailed)
	assert.Empty(t, m.Loaded(), "failures are not retained")
}

func TestManager_Instantiate(t *testing.T) {
	src := remote{"prefabs/enemy": []byte(`{"name":"enemy","w":1,"h":1}`)}
	var destroyed []cache.InstanceID
	m := newManager(t, src, Options[*sprite]{
		CacheOptions: cache.Options[*sprite]{
			OnDestroy: func(id cache.InstanceID, _ *sprite) { destroyed = append(destroyed, id) },
		},
	})
	ctx := context.Background()
	clone := func(_ context.Context, base *sprite) (*sprite, error) {
		c := *base
		return &c, nil
	}

	id1, s1, err := m.Instantiate(ctx, "prefabs/enemy", clone)
	require.NoError(t, err)
	id2, s2, err := m.Instantiate(ctx, "prefabs/enemy", clone)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
	assert.NotSame(t, s1, s2)
	assert.Equal(t, "prefabs/enemy", id1.Base())
	assert.Equal(t, 2, m.Cache().SizeOf("prefabs/enemy"))

	s1.Name = "moved"
	assert.Equal(t, "enemy", s2.Name)

	assert.True(t, m.Release(string(id1)))
	assert.Equal(t, []cache.InstanceID{id1}, destroyed)

	_, _, err = m.Instantiate(ctx, "prefabs/enemy", func(context.Context, *sprite) (*sprite, error) {
		return nil, errors.New("no slot")
	})
	assert.ErrorIs(t, err, cache.ErrInstantiateFailed)

	m.ReleaseAll()
	assert.Empty(t, m.Loaded())
	assert.Len(t, destroyed, 2)
}

func TestManager_DownloadSize(t *testing.T) {
	src := newTieredSource(t, remote{"sprites/hero": []byte("0123456789")})
	m := newManager(t, src, Options[*sprite]{})
	ctx := context.Background()

	n, err := m.DownloadSize(ctx, "sprites/hero")
	require.NoError(t, err)
	assert.EqualValues(t, 10, n)
	ok, err := m.IsDownloaded(ctx, "sprites/hero")
	require.NoError(t, err)
	assert.False(t, ok)

	var last [2]int64
	require.NoError(t, m.Download(ctx, "sprites/hero", func(done, total int64) {
		last = [2]int64{done, total}
	}))
	assert.Equal(t, [2]int64{10, 10}, last)

	ok, err = m.IsDownloaded(ctx, "sprites/hero")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err = m.DownloadSize(ctx, "nope")
	assert.ErrorIs(t, err, source.ErrNotFound)
	assert.EqualValues(t, -1, n)
}

func TestManager_DownloadMany(t *testing.T) {
	src := newTieredSource(t, remote{
		"a": []byte("aaaa"),
		"b": []byte("bbbbbb"),
		"c": []byte("cc"),
	})
	m := newManager(t, src, Options[*sprite]{DownloadParallelism: 2})
	ctx := context.Background()

	require.NoError(t, m.Download(ctx, "c", nil))

	var events [][2]int64
	require.NoError(t, m.DownloadMany(ctx, []string{"a", "b", "c"}, func(done, total int64) {
		events = append(events, [2]int64{done, total})
	}))
	require.NotEmpty(t, events)
	assert.Equal(t, [2]int64{0, 10}, events[0])
	assert.Equal(t, [2]int64{10, 10}, events[len(events)-1])
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i][0], events[i-1][0], "progress must not go backwards")
	}

	for _, k := range []string{"a", "b", "c"} {
		ok, err := m.IsDownloaded(ctx, k)
		require.NoError(t, err)
		assert.True(t, ok, k)
	}

	err := m.DownloadMany(ctx, []string{"a", "missing"}, nil)
	assert.ErrorIs(t, err, source.ErrNotFound)
}

func TestNew_NilSource(t *testing.T) {
	_, err := New[*sprite](nil, codec.JSON[*sprite]{}, Options[*sprite]{})
	assert.ErrorIs(t, err, ErrNilSource)
}

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/rescache/codec"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source: bolt
bolt:
  path: /tmp/x.db
  bucket: pack
workers: 3
duration: 2s
keys: 500
instance_pct: 25
zipf_s: 1.3
`), 0o600))

	cfg := Config{Source: "memory", ZipfV: 1}
	require.NoError(t, loadConfig(path, &cfg))
	assert.Equal(t, "bolt", cfg.Source)
	assert.Equal(t, "/tmp/x.db", cfg.Bolt.Path)
	assert.Equal(t, "pack", cfg.Bolt.Bucket)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 2*time.Second, cfg.Duration)
	assert.Equal(t, 500, cfg.Keys)
	assert.Equal(t, 25, cfg.InstancePct)
	assert.InDelta(t, 1.3, cfg.ZipfS, 1e-9)
	assert.InDelta(t, 1.0, cfg.ZipfV, 1e-9, "unset fields keep their defaults")
	assert.NoError(t, cfg.validate())
}

func TestValidate(t *testing.T) {
	base := Config{Keys: 10, ZipfS: 1.1}
	require.NoError(t, base.validate())

	bad := base
	bad.Keys = 0
	assert.Error(t, bad.validate())

	bad = base
	bad.ZipfS = 1
	assert.Error(t, bad.validate())

	bad = base
	bad.InstancePct = 101
	assert.Error(t, bad.validate())

	bad = base
	bad.MaxDecode = -1
	assert.Error(t, bad.validate())
}

func TestOpenSource(t *testing.T) {
	ctx := context.Background()

	cfg := Config{Source: "memory"}
	src, err := openSource(ctx, &cfg)
	require.NoError(t, err)
	require.NoError(t, src.Put(ctx, "k", []byte("v")))
	require.NoError(t, src.Close(ctx))

	cfg = Config{Source: "bolt"}
	cfg.Bolt.Path = filepath.Join(t.TempDir(), "bench.db")
	src, err = openSource(ctx, &cfg)
	require.NoError(t, err)
	require.NoError(t, src.Put(ctx, "k", []byte("v")))
	b, err := src.Fetch(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(b))
	require.NoError(t, src.Close(ctx))

	cfg = Config{Source: "tape"}
	_, err = openSource(ctx, &cfg)
	assert.Error(t, err)
}

func TestPayloadCodec(t *testing.T) {
	payload := []byte("sprite-sheet-bytes")
	for _, name := range []string{"", "raw", "json", "msgpack", "cbor", "protobuf"} {
		t.Run(name, func(t *testing.T) {
			c, err := payloadCodec(&Config{Codec: name})
			require.NoError(t, err)
			b, err := c.Encode(payload)
			require.NoError(t, err)
			out, err := c.Decode(b)
			require.NoError(t, err)
			assert.Equal(t, payload, out)
		})
	}

	_, err := payloadCodec(&Config{Codec: "xml"})
	assert.Error(t, err)
}

func TestPayloadCodec_MaxDecode(t *testing.T) {
	c, err := payloadCodec(&Config{Codec: "msgpack", MaxDecode: 8})
	require.NoError(t, err)
	b, err := c.Encode(make([]byte, 64))
	require.NoError(t, err)

	_, err = c.Decode(b)
	var tl *codec.TooLargeError
	require.ErrorAs(t, err, &tl)
	assert.Equal(t, 8, tl.Limit)
}

func TestPayloadCodec_BlobLengthMismatch(t *testing.T) {
	c, err := payloadCodec(&Config{Codec: "json"})
	require.NoError(t, err)
	_, err = c.Decode([]byte(`{"len":5,"data":"YWI="}`))
	assert.Error(t, err)
}

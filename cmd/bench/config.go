package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"google.golang.org/protobuf/types/known/wrapperspb"
	"gopkg.in/yaml.v3"

	"github.com/IvanBrykalov/rescache/codec"
	"github.com/IvanBrykalov/rescache/source"
	"github.com/IvanBrykalov/rescache/source/bolt"
	"github.com/IvanBrykalov/rescache/source/memory"
	rsrc "github.com/IvanBrykalov/rescache/source/redis"
)

// Config is the YAML shape accepted by -config. Flags set on the command
// line win over file values.
type Config struct {
	Source string `yaml:"source"` // memory | bolt | redis
	Codec  string `yaml:"codec"`  // raw | json | msgpack | cbor | protobuf
	// MaxDecode rejects stored payloads above this many bytes (0 = no limit).
	MaxDecode int `yaml:"max_decode"`

	Bolt struct {
		Path   string `yaml:"path"`
		Bucket string `yaml:"bucket"`
	} `yaml:"bolt"`

	Redis struct {
		Addr   string `yaml:"addr"`
		Prefix string `yaml:"prefix"`
	} `yaml:"redis"`

	Shards      int           `yaml:"shards"`
	Workers     int           `yaml:"workers"`
	Duration    time.Duration `yaml:"duration"`
	Keys        int           `yaml:"keys"`
	ValueSize   int           `yaml:"value_size"`
	InstancePct int           `yaml:"instance_pct"`
	HoldPct     int           `yaml:"hold_pct"`
	ZipfS       float64       `yaml:"zipf_s"`
	ZipfV       float64       `yaml:"zipf_v"`
}

func loadConfig(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	switch {
	case c.Keys <= 0:
		return fmt.Errorf("keys must be > 0, got %d", c.Keys)
	case c.ZipfS <= 1:
		return fmt.Errorf("zipf_s must be > 1, got %v", c.ZipfS)
	case c.InstancePct < 0 || c.InstancePct > 100:
		return fmt.Errorf("instance_pct must be in [0,100], got %d", c.InstancePct)
	case c.HoldPct < 0 || c.HoldPct > 100:
		return fmt.Errorf("hold_pct must be in [0,100], got %d", c.HoldPct)
	case c.MaxDecode < 0:
		return fmt.Errorf("max_decode must be >= 0, got %d", c.MaxDecode)
	}
	return nil
}

// store is a seedable Source.
type store interface {
	source.Source
	source.Writer
}

func openSource(ctx context.Context, c *Config) (store, error) {
	switch c.Source {
	case "", "memory":
		return memory.New(memory.Config{})
	case "bolt":
		path := c.Bolt.Path
		if path == "" {
			path = filepath.Join(os.TempDir(), "rescache-bench.db")
		}
		return bolt.Open(path, bolt.Options{Bucket: c.Bolt.Bucket})
	case "redis":
		client := goredis.NewClient(&goredis.Options{Addr: c.Redis.Addr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis %s: %w", c.Redis.Addr, err)
		}
		prefix := c.Redis.Prefix
		if prefix == "" {
			prefix = "rescache-bench:"
		}
		return rsrc.New(rsrc.Config{Client: client, Prefix: prefix, CloseClient: true})
	default:
		return nil, fmt.Errorf("unknown source %q (use memory, bolt or redis)", c.Source)
	}
}

// blob is the envelope the structured codecs store around a payload.
type blob struct {
	Len  int    `json:"len" msgpack:"len" cbor:"len"`
	Data []byte `json:"data" msgpack:"data" cbor:"data"`
}

// payloadCodec returns the codec seeded values are stored with. Every
// variant decodes back to the raw payload, so the workload is the same and
// only decode cost changes.
func payloadCodec(c *Config) (codec.Codec[[]byte], error) {
	var inner codec.Codec[[]byte]
	switch c.Codec {
	case "", "raw":
		inner = codec.Bytes{}
	case "json":
		inner = viaBlob(codec.JSON[blob]{Strict: true})
	case "msgpack":
		inner = viaBlob(codec.Msgpack[blob]{CompactInts: true})
	case "cbor":
		cb, err := codec.NewCBOR[blob](codec.CBOROptions{Deterministic: true, RejectDupKeys: true})
		if err != nil {
			return nil, err
		}
		inner = viaBlob(cb)
	case "protobuf":
		pb := codec.NewProtobuf(func() *wrapperspb.BytesValue { return &wrapperspb.BytesValue{} })
		inner = codec.Func[[]byte]{
			EncodeFn: func(b []byte) ([]byte, error) { return pb.Encode(wrapperspb.Bytes(b)) },
			DecodeFn: func(b []byte) ([]byte, error) {
				m, err := pb.Decode(b)
				if err != nil {
					return nil, err
				}
				return m.GetValue(), nil
			},
		}
	default:
		return nil, fmt.Errorf("unknown codec %q (use raw, json, msgpack, cbor or protobuf)", c.Codec)
	}
	return codec.Limit[[]byte]{Inner: inner, MaxDecode: c.MaxDecode}, nil
}

func viaBlob(c codec.Codec[blob]) codec.Codec[[]byte] {
	return codec.Func[[]byte]{
		EncodeFn: func(b []byte) ([]byte, error) { return c.Encode(blob{Len: len(b), Data: b}) },
		DecodeFn: func(b []byte) ([]byte, error) {
			v, err := c.Decode(b)
			if err != nil {
				return nil, err
			}
			if len(v.Data) != v.Len {
				return nil, fmt.Errorf("blob: %d bytes, header says %d", len(v.Data), v.Len)
			}
			return v.Data, nil
		},
	}
}

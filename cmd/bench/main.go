// Command bench runs a synthetic acquire/release workload against the cache
// and exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/IvanBrykalov/rescache/asset"
	"github.com/IvanBrykalov/rescache/cache"
	zlog "github.com/IvanBrykalov/rescache/log/zap"
	pmet "github.com/IvanBrykalov/rescache/metrics/prom"
)

func main() {
	cfg := Config{
		Source:      "memory",
		Codec:       "raw",
		Workers:     2 * runtime.GOMAXPROCS(0),
		Duration:    10 * time.Second,
		Keys:        10_000,
		ValueSize:   1024,
		InstancePct: 10,
		HoldPct:     20,
		ZipfS:       1.1,
		ZipfV:       1.0,
	}

	// ---- Flags ----
	var (
		configPath = flag.String("config", "", "YAML config file; flags given explicitly override it")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		verbose    = flag.Bool("v", false, "debug logging")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.StringVar(&cfg.Source, "source", cfg.Source, "asset source: memory | bolt | redis")
	flag.StringVar(&cfg.Codec, "codec", cfg.Codec, "payload codec: raw | json | msgpack | cbor | protobuf")
	flag.IntVar(&cfg.MaxDecode, "max_decode", cfg.MaxDecode, "reject payloads above this many bytes (0 = no limit)")
	flag.StringVar(&cfg.Bolt.Path, "bolt", cfg.Bolt.Path, "bolt database path")
	flag.StringVar(&cfg.Redis.Addr, "redis", "localhost:6379", "redis address")
	flag.IntVar(&cfg.Shards, "shards", cfg.Shards, "number of shards (0=auto)")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "number of worker goroutines")
	flag.DurationVar(&cfg.Duration, "duration", cfg.Duration, "benchmark duration")
	flag.IntVar(&cfg.Keys, "keys", cfg.Keys, "keyspace size")
	flag.IntVar(&cfg.ValueSize, "value_size", cfg.ValueSize, "asset size in bytes")
	flag.IntVar(&cfg.InstancePct, "instances", cfg.InstancePct, "AcquireInstance percentage [0..100]")
	flag.IntVar(&cfg.HoldPct, "hold", cfg.HoldPct, "percentage of acquisitions held until the next one [0..100]")
	flag.Float64Var(&cfg.ZipfS, "zipf_s", cfg.ZipfS, "Zipf s > 1 (skew)")
	flag.Float64Var(&cfg.ZipfV, "zipf_v", cfg.ZipfV, "Zipf v")
	flag.Parse()

	zl, err := newZap(*verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = zl.Sync() }()

	if *configPath != "" {
		if err := loadConfig(*configPath, &cfg); err != nil {
			zl.Fatal("config", zap.Error(err))
		}
		// parse again so explicit flags win over the file
		_ = flag.CommandLine.Parse(os.Args[1:])
	}
	if err := cfg.validate(); err != nil {
		zl.Fatal("config", zap.Error(err))
	}

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			zl.Info("pprof: serving", zap.String("addr", *pprofAddr))
			zl.Warn("pprof: stopped", zap.Error(http.ListenAndServe(*pprofAddr, nil)))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := pmet.New(nil, "rescache", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		zl.Info("metrics: serving", zap.String("addr", *metricsAddr))
		zl.Warn("metrics: stopped", zap.Error(http.ListenAndServe(*metricsAddr, nil)))
	}()

	ctx := context.Background()
	src, err := openSource(ctx, &cfg)
	if err != nil {
		zl.Fatal("open source", zap.Error(err))
	}

	pc, err := payloadCodec(&cfg)
	if err != nil {
		zl.Fatal("codec", zap.Error(err))
	}

	// ---- Seed the source ----
	val, err := pc.Encode(make([]byte, cfg.ValueSize))
	if err != nil {
		zl.Fatal("encode seed", zap.Error(err))
	}
	for i := 0; i < cfg.Keys; i++ {
		if err := src.Put(ctx, "k:"+strconv.Itoa(i), val); err != nil {
			zl.Fatal("seed", zap.Int("key", i), zap.Error(err))
		}
	}

	var released atomic.Int64
	logger := zlog.ZapLogger{L: zl}
	m, err := asset.New[[]byte](src, pc, asset.Options[[]byte]{
		CacheOptions: cache.Options[[]byte]{
			Shards:    cfg.Shards,
			Metrics:   metrics,
			OnRelease: func(string, []byte) { released.Add(1) },
			OnDestroy: func(cache.InstanceID, []byte) { released.Add(1) },
		},
		Logger: logger,
	})
	if err != nil {
		zl.Fatal("asset manager", zap.Error(err))
	}
	defer func() {
		if err := m.Close(ctx); err != nil {
			zl.Warn("close", zap.Error(err))
		}
	}()

	// ---- Snapshot config for goroutines ----
	workersN := cfg.Workers
	if workersN <= 0 {
		workersN = 1
	}
	keysMax := uint64(cfg.Keys - 1)
	seedBase := *seed
	clone := func(_ context.Context, b []byte) ([]byte, error) { return append([]byte(nil), b...), nil }

	// ---- Load generation ----
	var acquires, instances, failures atomic.Uint64
	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			localZipf := rand.NewZipf(localR, cfg.ZipfS, cfg.ZipfV, keysMax)

			// held is released on the next iteration, keeping refcounts above one
			var held string
			defer func() {
				if held != "" {
					m.Release(held)
				}
			}()

			for runCtx.Err() == nil {
				key := "k:" + strconv.FormatUint(localZipf.Uint64(), 10)
				var hold string
				if int(localR.Int31n(100)) < cfg.InstancePct {
					iid, _, err := m.Instantiate(runCtx, key, clone)
					if err != nil {
						failures.Add(1)
						continue
					}
					instances.Add(1)
					hold = string(iid)
				} else {
					if _, err := m.Load(runCtx, key); err != nil {
						failures.Add(1)
						continue
					}
					acquires.Add(1)
					hold = key
				}

				if int(localR.Int31n(100)) >= cfg.HoldPct {
					m.Release(hold)
					continue
				}
				if held != "" {
					m.Release(held)
				}
				held = hold
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	st := m.Cache().Stats()
	ops := acquires.Load() + instances.Load()
	fmt.Printf("source=%s codec=%s shards=%d workers=%d keys=%d dur=%v seed=%d\n",
		cfg.Source, cfg.Codec, cfg.Shards, workersN, cfg.Keys, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  acquires=%d  instances=%d  failures=%d\n",
		ops, float64(ops)/elapsed.Seconds(), acquires.Load(), instances.Load(), failures.Load())
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%  loads=%d  releases=%d\n",
		st.Hits, st.Misses, st.HitRate()*100, st.Loads, released.Load())
	fmt.Printf("Len()=%d\n", m.Cache().Len())
}

func newZap(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	promadapter "github.com/codewandler/lrukv-go/adapters/prometheus"
	"github.com/codewandler/lrukv-go/core/kvstore"
)

// store is what the workers drive: a single Store or a Sharded one.
type store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Len() int
	Close() error
}

type counters struct {
	gets, hits, puts, deletes, errors atomic.Int64
}

func (c *counters) total() int64 {
	return c.gets.Load() + c.puts.Load() + c.deletes.Load()
}

func main() {
	cfg, err := loadConfig()
	checkErr(err)

	var level slog.Level
	checkErr(level.UnmarshalText([]byte(cfg.LogLevel)))
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	lt := &loadtestT{ctx: ctx, log: log}
	defer lt.doCleanup()

	open, err := opener(cfg, lt)
	checkErr(err)

	opts := []kvstore.Option{
		kvstore.WithCapacity(cfg.Capacity),
		kvstore.WithLog(log),
	}

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, kvstore.WithMetrics(promadapter.NewStoreMetrics(reg)))

		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", slog.Any("error", err))
			}
		}()
		defer func() { _ = srv.Shutdown(context.Background()) }()
		log.Info("serving metrics", slog.String("addr", cfg.MetricsAddr))
	}

	log.Info("==================================")
	log.Info("opening store",
		slog.String("backend", cfg.Backend),
		slog.String("location", cfg.Location),
		slog.Int("capacity", cfg.Capacity),
		slog.Int("shards", cfg.Shards),
		slog.Int("compress", cfg.Compress),
	)

	openedAt := time.Now()
	var st store
	if cfg.Shards > 1 {
		st, err = kvstore.OpenShardedWith(ctx, open, cfg.Location, cfg.Create, cfg.Shards, opts...)
	} else {
		st, err = kvstore.OpenWith(ctx, open, cfg.Location, cfg.Create, opts...)
	}
	checkErr(err)
	defer func() { checkErr(st.Close()) }()

	log.Info("store opened",
		slog.Duration("took", time.Since(openedAt)),
		slog.Int("preloaded", st.Len()),
	)

	var c counters
	startAt := time.Now()

	reportCtx, stopReport := context.WithCancel(ctx)
	go report(reportCtx, log, cfg.Report, &c)

	g, gctx := errgroup.WithContext(ctx)
	perWorker := cfg.N / cfg.Workers
	for w := range cfg.Workers {
		n := perWorker
		if w == 0 {
			n += cfg.N % cfg.Workers
		}
		g.Go(func() error {
			return work(gctx, st, cfg, n, uint64(w), &c)
		})
	}
	err = g.Wait()
	stopReport()
	checkErr(err)

	// === stats ===

	took := time.Since(startAt)
	runtime.GC()
	mu := getMemUsage()

	gets := c.gets.Load()
	hitRatio := 0.0
	if gets > 0 {
		hitRatio = float64(c.hits.Load()) / float64(gets)
	}

	log.Info("==================================")
	log.Info("done",
		slog.String("runtime", fmt.Sprintf("%.3fs", took.Seconds())),
		slog.Int64("ops", c.total()),
		slog.Int("ops_per_sec", int(float64(c.total())/took.Seconds())),
		slog.Int64("gets", gets),
		slog.String("hit_ratio", strconv.FormatFloat(hitRatio, 'f', 3, 64)),
		slog.Int64("puts", c.puts.Load()),
		slog.Int64("deletes", c.deletes.Load()),
		slog.Int64("errors", c.errors.Load()),
		slog.Int("cached", st.Len()),
		slog.Uint64("heap_mib", mu.Alloc/1024/1024),
		slog.Uint64("sys_mib", mu.Sys/1024/1024),
	)
}

// work runs n random operations against st. Keys are drawn uniformly from
// the key space, so the hit ratio follows capacity/keyspace once warm.
func work(ctx context.Context, st store, cfg config, n int, seed uint64, c *counters) error {
	rnd := rand.New(rand.NewPCG(seed, uint64(time.Now().UnixNano())))

	for range n {
		if err := ctx.Err(); err != nil {
			return err
		}

		key := "key-" + strconv.Itoa(rnd.IntN(cfg.KeySpace))
		var err error
		switch p := rnd.IntN(100); {
		case p < cfg.ReadPct:
			var ok bool
			_, ok, err = st.Get(ctx, key)
			c.gets.Add(1)
			if ok {
				c.hits.Add(1)
			}
		case p < cfg.ReadPct+cfg.DeletePct:
			err = st.Delete(ctx, key)
			c.deletes.Add(1)
		default:
			var v string
			if v, err = gonanoid.New(cfg.ValueSize); err != nil {
				return err
			}
			err = st.Put(ctx, key, []byte(v))
			c.puts.Add(1)
		}

		if err != nil {
			// backing failures are counted, not fatal
			if errors.Is(err, kvstore.ErrClosed) {
				return err
			}
			c.errors.Add(1)
		}
	}
	return nil
}

func report(ctx context.Context, log *slog.Logger, every time.Duration, c *counters) {
	t := time.NewTicker(every)
	defer t.Stop()

	last, lastAt := int64(0), time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			total := c.total()
			mu := getMemUsage()
			log.Info("progress",
				slog.Int64("ops", total),
				slog.Int("ops_per_sec", int(float64(total-last)/now.Sub(lastAt).Seconds())),
				slog.Int64("errors", c.errors.Load()),
				slog.Uint64("heap_mib", mu.Alloc/1024/1024),
			)
			last, lastAt = total, now
		}
	}
}

// === stats helpers ===

type MemUsage struct {
	Alloc      uint64 // bytes allocated and not yet freed (heap)
	TotalAlloc uint64 // cumulative bytes allocated
	Sys        uint64 // total bytes obtained from OS
	NumGC      uint32 // gc cycles
}

func getMemUsage() MemUsage {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemUsage{
		Alloc:      m.Alloc,
		TotalAlloc: m.TotalAlloc,
		Sys:        m.Sys,
		NumGC:      m.NumGC,
	}
}

// === Helpers ===

func checkErr(err error) {
	if err != nil {
		panic(err)
	}
}

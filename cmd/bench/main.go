// Command bench drives a synthetic Zipf workload against the cache policies
// and, for comparison, hashicorp/golang-lru and ristretto. It reports hit
// ratio and throughput and serves Prometheus metrics and pprof while running.
//
// Usage:
//
//	bench [flags]
//	bench --policy lfu,2q,golang-lru --cap 50000 --duration 5s
//	bench --config cache.yaml --http :8080
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"os/signal"
	"runtime"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/IvanBrykalov/slotcache/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := createApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func createApp() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "run a Zipf workload against cache eviction policies",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "policy",
				Usage: "comma-separated: lru, 2q, simple2q, lfu, golang-lru, ristretto",
				Value: "lru,2q,simple2q,lfu",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "YAML/JSON cache settings; overrides --cap and the built-in policy tuning",
			},
			&cli.IntFlag{Name: "cap", Usage: "cache capacity (entries)", Value: 100_000},
			&cli.IntFlag{Name: "workers", Usage: "number of worker goroutines", Value: 2 * runtime.GOMAXPROCS(0)},
			&cli.DurationFlag{Name: "duration", Usage: "run time per policy", Value: 5 * time.Second},
			&cli.IntFlag{Name: "reads", Usage: "read percentage [0..100]", Value: 80},
			&cli.IntFlag{Name: "keys", Usage: "keyspace size", Value: 1_000_000},
			&cli.Float64Flag{Name: "zipf-s", Usage: "Zipf s > 1 (skew)", Value: 1.1},
			&cli.Float64Flag{Name: "zipf-v", Usage: "Zipf v >= 1", Value: 1.0},
			&cli.Int64Flag{Name: "seed", Usage: "random seed (0 = time based)"},
			&cli.StringFlag{Name: "http", Usage: "serve /metrics and /debug/pprof at addr; empty = disabled"},
			&cli.BoolFlag{Name: "verbose", Usage: "debug logging"},
		},
		Action: run,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	level := slog.LevelInfo
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	w := workload{
		capacity: cmd.Int("cap"),
		workers:  max(cmd.Int("workers"), 1),
		duration: cmd.Duration("duration"),
		readPct:  cmd.Int("reads"),
		keys:     cmd.Int("keys"),
		zipfS:    cmd.Float64("zipf-s"),
		zipfV:    cmd.Float64("zipf-v"),
		seed:     cmd.Int64("seed"),
	}
	if w.seed == 0 {
		w.seed = time.Now().UnixNano()
	}
	if w.zipfS <= 1 || w.zipfV < 1 || w.keys < 2 {
		return errors.New("bench: need zipf-s > 1, zipf-v >= 1 and keys >= 2")
	}

	var settings *config.Settings
	if path := cmd.String("config"); path != "" {
		s, err := config.Load(path)
		if err != nil {
			return err
		}
		settings = &s
		w.capacity = s.Capacity
		log.Info("loaded settings", "path", path, "capacity", s.Capacity, "policy", s.Policy)
	}

	metrics := newBenchMetrics()
	if addr := cmd.String("http"); addr != "" {
		http.Handle("/metrics", metrics.handler())
		srv := &http.Server{Addr: addr, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info("serving metrics and pprof", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server", "err", err)
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	names := strings.Split(cmd.String("policy"), ",")
	if settings != nil && !cmd.IsSet("policy") {
		names = []string{settings.Policy}
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		t, err := newTarget(name, w.capacity, settings, metrics)
		if err != nil {
			return err
		}
		log.Debug("starting run", "policy", name, "capacity", w.capacity, "workers", w.workers)

		res, err := w.run(ctx, t)
		t.close()
		if err != nil {
			return err
		}
		fmt.Println(res.format(name, w))
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	hlru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/slotcache/cache"
	"github.com/IvanBrykalov/slotcache/config"
)

// target is the slice of cache behaviour the workload needs.
type target interface {
	get(k string) bool
	set(k, v string)
	len() int // -1 if unknown
	close()
}

// newTarget builds the cache under test. Slotcache policies report into
// metrics; a nil metrics leaves them uninstrumented.
func newTarget(name string, capacity int, settings *config.Settings, metrics *benchMetrics) (target, error) {
	switch name {
	case "golang-lru":
		c, err := hlru.New[string, string](capacity)
		if err != nil {
			return nil, err
		}
		return hashicorpTarget{c}, nil
	case "ristretto":
		c, err := ristretto.NewCache(&ristretto.Config[string, string]{
			NumCounters: int64(10 * capacity),
			MaxCost:     int64(capacity),
			BufferItems: 64,
		})
		if err != nil {
			return nil, err
		}
		return ristrettoTarget{c}, nil
	}

	s := config.Settings{Capacity: capacity, Policy: name}
	if settings != nil && settings.Policy == name {
		s = *settings
	}
	opt, err := config.Options[string, string](s)
	if err != nil {
		return nil, err
	}
	if metrics != nil {
		opt.Metrics = metrics.forPolicy(name)
	}
	c, err := cache.New(opt)
	if err != nil {
		return nil, err
	}
	return slotTarget{c}, nil
}

type slotTarget struct {
	c cache.Cache[string, string]
}

func (t slotTarget) get(k string) bool {
	_, ok := t.c.TryGet(k)
	return ok
}

func (t slotTarget) set(k, v string) { t.c.Set(k, v) }
func (t slotTarget) len() int        { return t.c.Len() }
func (t slotTarget) close()          {}

type hashicorpTarget struct {
	c *hlru.Cache[string, string]
}

func (t hashicorpTarget) get(k string) bool {
	_, ok := t.c.Get(k)
	return ok
}

func (t hashicorpTarget) set(k, v string) { t.c.Add(k, v) }
func (t hashicorpTarget) len() int        { return t.c.Len() }
func (t hashicorpTarget) close()          {}

type ristrettoTarget struct {
	c *ristretto.Cache[string, string]
}

func (t ristrettoTarget) get(k string) bool {
	_, ok := t.c.Get(k)
	return ok
}

func (t ristrettoTarget) set(k, v string) { t.c.Set(k, v, 1) }
func (t ristrettoTarget) len() int        { return -1 }
func (t ristrettoTarget) close()          { t.c.Close() }

type workload struct {
	capacity int
	workers  int
	duration time.Duration
	readPct  int
	keys     int
	zipfS    float64
	zipfV    float64
	seed     int64
}

type result struct {
	elapsed time.Duration
	reads   uint64
	writes  uint64
	hits    uint64
	len     int
}

func (r result) format(name string, w workload) string {
	ops := r.reads + r.writes
	hitRate := 0.0
	if r.reads > 0 {
		hitRate = float64(r.hits) / float64(r.reads) * 100
	}
	return fmt.Sprintf("%-10s cap=%d workers=%d ops=%d (%.0f ops/s) reads=%d writes=%d hit-rate=%.2f%% len=%d",
		name, w.capacity, w.workers, ops, float64(ops)/r.elapsed.Seconds(), r.reads, r.writes, hitRate, r.len)
}

// run preloads half the capacity, then hammers t from w.workers goroutines
// until w.duration passes or ctx ends.
func (w workload) run(ctx context.Context, t target) (result, error) {
	for i := 0; i < w.capacity/2; i++ {
		k := "k:" + strconv.Itoa(i)
		t.set(k, k)
	}

	ctx, cancel := context.WithTimeout(ctx, w.duration)
	defer cancel()

	var reads, writes, hits atomic.Uint64
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for id := 0; id < w.workers; id++ {
		g.Go(func() error {
			// rand.Rand is not goroutine-safe: one RNG + Zipf per worker.
			r := rand.New(rand.NewSource(w.seed + int64(id)*9973))
			zipf := rand.NewZipf(r, w.zipfS, w.zipfV, uint64(w.keys-1))
			for ctx.Err() == nil {
				k := "k:" + strconv.FormatUint(zipf.Uint64(), 10)
				if r.Intn(100) < w.readPct {
					reads.Add(1)
					if t.get(k) {
						hits.Add(1)
					}
					continue
				}
				writes.Add(1)
				t.set(k, k)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result{}, err
	}
	return result{
		elapsed: time.Since(start),
		reads:   reads.Load(),
		writes:  writes.Load(),
		hits:    hits.Load(),
		len:     t.len(),
	}, nil
}

// Package dispatch implements the Batch Dispatcher (§4.9): groups due
// products by host, processes them in chunks under a memory-adaptive
// concurrency gate, and reports per-product outcomes to the caller.
package dispatch

import (
	"context"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pricewatch/pricewatch/internal/domain"
)

const (
	defaultChunkSize        = 10
	defaultInterBatchDelay  = time.Second
	defaultInterHostDelay   = 2 * time.Second
	defaultMemoryThreshold  = 70.0
	defaultMaxConcurrent    = 3
)

// Outcome is the result of scraping a single product, reported to the
// caller-supplied handler.
type Outcome struct {
	Product domain.Product
	Result  any // *engine.Result, kept as any to avoid an import cycle
	Err     error
}

// ScrapeFunc scrapes a single product and returns its outcome.
type ScrapeFunc func(ctx context.Context, p domain.Product) Outcome

// Config configures dispatcher tunables, sourced from config.EngineConfig.
type Config struct {
	ChunkSize       int
	InterBatchDelay time.Duration
	InterHostDelay  time.Duration
	MemoryThreshold float64 // percent RSS, soft admission pause
	MaxConcurrent   int
}

// Dispatcher groups due products by host and fans out scrapes under bounded
// concurrency and inter-batch delays.
type Dispatcher struct {
	cfg     Config
	scrape  ScrapeFunc
	onChunk func(host string, outcomes []Outcome)
}

// New creates a Dispatcher. onChunk, if non-nil, is invoked after each
// chunk completes with that chunk's outcomes.
func New(cfg Config, scrape ScrapeFunc, onChunk func(host string, outcomes []Outcome)) *Dispatcher {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.InterBatchDelay <= 0 {
		cfg.InterBatchDelay = defaultInterBatchDelay
	}
	if cfg.InterHostDelay <= 0 {
		cfg.InterHostDelay = defaultInterHostDelay
	}
	if cfg.MemoryThreshold <= 0 {
		cfg.MemoryThreshold = defaultMemoryThreshold
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = defaultMaxConcurrent
	}
	return &Dispatcher{cfg: cfg, scrape: scrape, onChunk: onChunk}
}

// Run groups products by StoreDomain, processing each host's chunks in turn
// (hosts run sequentially; within a chunk, products run concurrently under
// the memory-adaptive gate).
func (d *Dispatcher) Run(ctx context.Context, products []domain.Product) error {
	byHost := groupByHost(products)
	hosts := make([]string, 0, len(byHost))
	for h := range byHost {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)

	for i, host := range hosts {
		if err := d.runHost(ctx, host, byHost[host]); err != nil {
			return err
		}
		if i < len(hosts)-1 {
			if err := sleepCtx(ctx, d.cfg.InterHostDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Dispatcher) runHost(ctx context.Context, host string, products []domain.Product) error {
	chunks := chunk(products, d.cfg.ChunkSize)
	for i, c := range chunks {
		if err := d.runChunk(ctx, host, c); err != nil {
			return err
		}
		if i < len(chunks)-1 {
			if err := sleepCtx(ctx, d.cfg.InterBatchDelay); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Dispatcher) runChunk(ctx context.Context, host string, products []domain.Product) error {
	if err := d.waitForMemory(ctx); err != nil {
		return err
	}

	outcomes := make([]Outcome, len(products))
	sem := make(chan struct{}, d.cfg.MaxConcurrent)
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	for i, p := range products {
		i, p := i, p
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}
			o := d.scrape(gctx, p)
			mu.Lock()
			outcomes[i] = o
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if d.onChunk != nil {
		d.onChunk(host, outcomes)
	}
	return nil
}

// waitForMemory polls RSS until it falls below the configured threshold,
// admitting immediately if the read fails (fail-open, matching the robots
// cache's posture toward measurement failures).
func (d *Dispatcher) waitForMemory(ctx context.Context) error {
	for {
		pct, ok := residentMemoryPercent()
		if !ok || pct < d.cfg.MemoryThreshold {
			return nil
		}
		if err := sleepCtx(ctx, 500*time.Millisecond); err != nil {
			return err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func groupByHost(products []domain.Product) map[string][]domain.Product {
	out := make(map[string][]domain.Product)
	for _, p := range products {
		out[p.StoreDomain] = append(out[p.StoreDomain], p)
	}
	return out
}

func chunk(products []domain.Product, size int) [][]domain.Product {
	var out [][]domain.Product
	for i := 0; i < len(products); i += size {
		end := i + size
		if end > len(products) {
			end = len(products)
		}
		out = append(out, products[i:end])
	}
	return out
}

// residentMemoryPercent reads /proc/self/status VmRSS and approximates a
// percentage against the system memory figure read from MemTotal in
// /proc/meminfo. No example repo in the retrieval pack
// reads process RSS; this is intentionally a small stdlib-only reader
// rather than a library-shaped concern (see DESIGN.md).
func residentMemoryPercent() (float64, bool) {
	rss, ok := readProcStatusKB("/proc/self/status", "VmRSS:")
	if !ok {
		return 0, false
	}
	total, ok := readProcStatusKB("/proc/meminfo", "MemTotal:")
	if !ok || total == 0 {
		return 0, false
	}
	return (rss / total) * 100, true
}

func readProcStatusKB(path, prefix string) (float64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	for _, line := range strings.Split(string(data), "\n") {
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

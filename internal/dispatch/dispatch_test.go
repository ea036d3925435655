package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pricewatch/pricewatch/internal/domain"
)

func fastConfig() Config {
	return Config{
		ChunkSize:       2,
		InterBatchDelay: time.Millisecond,
		InterHostDelay:  time.Millisecond,
		MaxConcurrent:   2,
	}
}

func TestGroupByHost(t *testing.T) {
	products := []domain.Product{
		{ID: "1", StoreDomain: "a.example.com"},
		{ID: "2", StoreDomain: "b.example.com"},
		{ID: "3", StoreDomain: "a.example.com"},
	}
	groups := groupByHost(products)
	if len(groups["a.example.com"]) != 2 {
		t.Fatalf("a.example.com group = %d products, want 2", len(groups["a.example.com"]))
	}
	if len(groups["b.example.com"]) != 1 {
		t.Fatalf("b.example.com group = %d products, want 1", len(groups["b.example.com"]))
	}
}

func TestChunk(t *testing.T) {
	products := make([]domain.Product, 5)
	chunks := chunk(products, 2)
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	if len(chunks[0]) != 2 || len(chunks[1]) != 2 || len(chunks[2]) != 1 {
		t.Fatalf("chunk sizes = %d/%d/%d, want 2/2/1", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
}

func TestRunScrapesEveryProductAcrossHosts(t *testing.T) {
	products := []domain.Product{
		{ID: "1", StoreDomain: "a.example.com"},
		{ID: "2", StoreDomain: "b.example.com"},
		{ID: "3", StoreDomain: "a.example.com"},
	}

	var mu sync.Mutex
	scraped := make(map[string]bool)
	scrape := func(ctx context.Context, p domain.Product) Outcome {
		mu.Lock()
		scraped[p.ID] = true
		mu.Unlock()
		return Outcome{Product: p}
	}

	d := New(fastConfig(), scrape, nil)
	if err := d.Run(context.Background(), products); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	for _, p := range products {
		if !scraped[p.ID] {
			t.Fatalf("product %s was never scraped", p.ID)
		}
	}
}

func TestRunInvokesOnChunkPerHost(t *testing.T) {
	products := []domain.Product{
		{ID: "1", StoreDomain: "a.example.com"},
		{ID: "2", StoreDomain: "a.example.com"},
		{ID: "3", StoreDomain: "a.example.com"},
	}

	var mu sync.Mutex
	var chunkSizes []int
	onChunk := func(host string, outcomes []Outcome) {
		mu.Lock()
		chunkSizes = append(chunkSizes, len(outcomes))
		mu.Unlock()
	}
	scrape := func(ctx context.Context, p domain.Product) Outcome {
		return Outcome{Product: p}
	}

	d := New(fastConfig(), scrape, onChunk)
	if err := d.Run(context.Background(), products); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(chunkSizes) != 2 {
		t.Fatalf("onChunk called %d times, want 2 (chunk size 2 over 3 products)", len(chunkSizes))
	}
	if chunkSizes[0] != 2 || chunkSizes[1] != 1 {
		t.Fatalf("chunk sizes = %v, want [2 1]", chunkSizes)
	}
}

func TestRunPropagatesContextCancellation(t *testing.T) {
	products := []domain.Product{
		{ID: "1", StoreDomain: "a.example.com"},
		{ID: "2", StoreDomain: "a.example.com"},
	}
	ctx, cancel := context.WithCancel(context.Background())
	wantErr := errors.New("scrape failed")
	scrape := func(ctx context.Context, p domain.Product) Outcome {
		cancel()
		return Outcome{Product: p, Err: wantErr}
	}

	d := New(fastConfig(), scrape, nil)
	err := d.Run(ctx, products)
	if err == nil {
		t.Fatal("expected Run to observe the cancelled context")
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	d := New(Config{}, func(ctx context.Context, p domain.Product) Outcome { return Outcome{} }, nil)
	if d.cfg.ChunkSize != defaultChunkSize {
		t.Fatalf("ChunkSize = %d, want %d", d.cfg.ChunkSize, defaultChunkSize)
	}
	if d.cfg.MaxConcurrent != defaultMaxConcurrent {
		t.Fatalf("MaxConcurrent = %d, want %d", d.cfg.MaxConcurrent, defaultMaxConcurrent)
	}
	if d.cfg.MemoryThreshold != defaultMemoryThreshold {
		t.Fatalf("MemoryThreshold = %v, want %v", d.cfg.MemoryThreshold, defaultMemoryThreshold)
	}
}

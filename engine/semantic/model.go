// Package semantic is the adapter between the ledger and a concrete
// similarity-search engine. Two engines implement Store: VectorStore over
// Qdrant (the default), and LexicalStore over an in-process Bleve index.
package semantic

import (
	"context"
	"log/slog"
	"slices"

	"github.com/WessleyAI/condo-ledger/engine/chunk"
	"github.com/WessleyAI/condo-ledger/pkg/fn"
)

// Store is the ledger's view of a semantic index.
type Store interface {
	// UpsertBatch loads chunks in fixed-size batches. With reset, the
	// collection is dropped and recreated first. A failed batch is skipped and
	// counted in the report.
	UpsertBatch(ctx context.Context, chunks []chunk.Chunk, reset bool) (IndexReport, error)
	// Query returns up to k hits for text. filter is an equality conjunction
	// over metadata; an empty filter means unfiltered search.
	Query(ctx context.Context, text string, k int, filter map[string]string) ([]Hit, error)
	// ListDistinctMetadata samples at most sampleLimit chunks. The result is
	// the set of values seen, not a guaranteed-complete domain.
	ListDistinctMetadata(ctx context.Context, sampleLimit int) (Inventory, error)
	// Count returns the number of indexed chunks; a missing collection counts as 0.
	Count(ctx context.Context) (int, error)
	Close() error
}

// Embedder turns text into vectors. Implemented by pkg/ollama.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Hit is a single ranked search result. Score is in [0,1], higher is more relevant.
type Hit struct {
	ChunkID  string         `json:"chunk_id"`
	Content  string         `json:"content"`
	Kind     chunk.Kind     `json:"chunk_type"`
	Metadata chunk.Metadata `json:"metadata"`
	Score    float64        `json:"similarity_score"`
}

// IndexReport summarises a bulk load.
type IndexReport struct {
	Total         int     `json:"total"`
	Indexed       int     `json:"indexed"`
	Skipped       int     `json:"skipped"`
	Batches       int     `json:"batches"`
	FailedBatches int     `json:"failed_batches"`
	Errors        []error `json:"-"`
}

// Inventory is the set of metadata values seen in a sample of the index.
type Inventory struct {
	Categories    []string `json:"categories"`
	Subcategories []string `json:"subcategories"`
	Vendors       []string `json:"vendors"`
	Months        []string `json:"months"`
	ChunkTypes    []string `json:"chunk_types"`
}

// HasMonth reports whether key is among the known months.
func (inv Inventory) HasMonth(key string) bool { return slices.Contains(inv.Months, key) }

// HasCategory reports whether c is among the known categories.
func (inv Inventory) HasCategory(c string) bool { return slices.Contains(inv.Categories, c) }

// Empty reports whether nothing was seen.
func (inv Inventory) Empty() bool {
	return len(inv.Categories) == 0 && len(inv.Months) == 0 && len(inv.Vendors) == 0
}

// Options configures either store engine.
type Options struct {
	Collection string
	BatchSize  int
	Retry      fn.RetryOpts
	Logger     *slog.Logger
}

// DefaultOptions returns the defaults used by cmd/api and cmd/condoctl.
func DefaultOptions() Options {
	return Options{
		Collection: "condominium_expenses",
		BatchSize:  100,
		Retry:      fn.DefaultRetry,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Collection == "" {
		o.Collection = d.Collection
	}
	if o.BatchSize <= 0 {
		o.BatchSize = d.BatchSize
	}
	if o.Retry.MaxAttempts <= 0 {
		o.Retry = d.Retry
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// inventorySet accumulates distinct metadata values.
type inventorySet struct {
	categories, subcategories, vendors, months, types map[string]struct{}
}

func newInventorySet() *inventorySet {
	return &inventorySet{
		categories:    map[string]struct{}{},
		subcategories: map[string]struct{}{},
		vendors:       map[string]struct{}{},
		months:        map[string]struct{}{},
		types:         map[string]struct{}{},
	}
}

func (s *inventorySet) add(md chunk.Metadata) {
	put := func(set map[string]struct{}, key string) {
		if v := md.String(key); v != "" {
			set[v] = struct{}{}
		}
	}
	put(s.categories, chunk.KeyCategory)
	put(s.subcategories, chunk.KeySubcategory)
	put(s.vendors, chunk.KeyVendor)
	put(s.months, chunk.KeyMonthYear)
	put(s.types, chunk.KeyChunkType)
}

func (s *inventorySet) inventory() Inventory {
	return Inventory{
		Categories:    fn.SortedKeys(s.categories),
		Subcategories: fn.SortedKeys(s.subcategories),
		Vendors:       fn.SortedKeys(s.vendors),
		Months:        fn.SortedKeys(s.months),
		ChunkTypes:    fn.SortedKeys(s.types),
	}
}

// flatChunks drops chunks whose metadata is not flat, recording each as an indexing error.
func flatChunks(chunks []chunk.Chunk, report *IndexReport) []chunk.Chunk {
	out := make([]chunk.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if err := chunk.CheckFlat(c.Metadata()); err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, indexErr(c.ID, err))
			continue
		}
		out = append(out, c)
	}
	return out
}

func clamp01(f float64) float64 {
	return max(0, min(1, f))
}

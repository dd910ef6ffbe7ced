package semantic

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/WessleyAI/condo-ledger/engine/chunk"
	"github.com/WessleyAI/condo-ledger/engine/domain"
	"github.com/WessleyAI/condo-ledger/pkg/fn"
)

// filterKeys are indexed verbatim so equality filters match whole values.
var filterKeys = []string{
	chunk.KeyChunkID, chunk.KeyChunkType, chunk.KeyCurrency, chunk.KeyExpenseID,
	chunk.KeyVendor, chunk.KeyCategory, chunk.KeySubcategory, chunk.KeyMonthYear, chunk.KeyDocument,
}

// LexicalStore is a Store over an embedded Bleve index. It needs no embedding
// service and backs offline use and tests. Path "" keeps the index in memory.
type LexicalStore struct {
	mu    sync.RWMutex
	index bleve.Index
	path  string
	opts  Options
}

var _ Store = (*LexicalStore)(nil)

// NewLexical opens or creates the index at path.
func NewLexical(path string, opts Options) (*LexicalStore, error) {
	ls := &LexicalStore{path: path, opts: opts.withDefaults()}
	idx, err := ls.open()
	if err != nil {
		return nil, err
	}
	ls.index = idx
	return ls, nil
}

func (l *LexicalStore) open() (bleve.Index, error) {
	if l.path == "" {
		idx, err := bleve.NewMemOnly(buildMapping())
		if err != nil {
			return nil, fmt.Errorf("semantic: create mem index: %w", err)
		}
		return idx, nil
	}
	idx, err := bleve.Open(l.path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(l.path, buildMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("semantic: open index %s: %w", l.path, err)
	}
	return idx, nil
}

func buildMapping() mapping.IndexMapping {
	kw := bleve.NewTextFieldMapping()
	kw.Analyzer = keyword.Name

	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(contentKey, text)
	doc.AddFieldMappingsAt(chunk.KeyDescription, text)
	for _, k := range filterKeys {
		doc.AddFieldMappingsAt(k, kw)
	}

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name
	return im
}

// Close closes the index.
func (l *LexicalStore) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.index == nil {
		return nil
	}
	err := l.index.Close()
	l.index = nil
	return err
}

// reset drops and recreates the index. On failure the store is left closed
// and reports ErrStoreUnavailable until reopened.
func (l *LexicalStore) reset() error {
	if l.index != nil {
		err := l.index.Close()
		l.index = nil
		if err != nil {
			return fmt.Errorf("semantic: close index: %w", err)
		}
	}
	if l.path != "" {
		if err := os.RemoveAll(l.path); err != nil {
			return fmt.Errorf("semantic: remove index: %w", err)
		}
	}
	idx, err := l.open()
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	l.index = idx
	return nil
}

// UpsertBatch indexes chunks by chunk ID, so re-indexing overwrites.
func (l *LexicalStore) UpsertBatch(_ context.Context, chunks []chunk.Chunk, reset bool) (IndexReport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if reset {
		if err := l.reset(); err != nil {
			return IndexReport{}, err
		}
	} else if l.index == nil {
		return IndexReport{}, domain.ErrStoreUnavailable
	}
	report := IndexReport{Total: len(chunks)}
	if len(chunks) == 0 {
		return report, domain.ErrNoChunks
	}

	valid := flatChunks(chunks, &report)
	for i, group := range fn.Chunk(valid, l.opts.BatchSize) {
		report.Batches++
		if err := l.indexBatch(group); err != nil {
			l.opts.Logger.Warn("semantic: batch skipped", "batch", i, "size", len(group), "err", err)
			report.FailedBatches++
			report.Skipped += len(group)
			report.Errors = append(report.Errors, indexErr(fmt.Sprintf("batch %d", i), err))
			continue
		}
		report.Indexed += len(group)
	}

	if report.Indexed == 0 {
		return report, fmt.Errorf("semantic: index: %w", errors.Join(report.Errors...))
	}
	return report, nil
}

func (l *LexicalStore) indexBatch(group []chunk.Chunk) error {
	b := l.index.NewBatch()
	for _, c := range group {
		doc := map[string]any(c.Metadata())
		doc[contentKey] = c.Content
		if err := b.Index(c.ID, doc); err != nil {
			return fmt.Errorf("index %s: %w", c.ID, err)
		}
	}
	return l.index.Batch(b)
}

// Query ranks by text relevance within the filtered set. Filters are required
// matches; the text only scores, so a filtered query never misses on wording.
func (l *LexicalStore) Query(_ context.Context, text string, k int, filter map[string]string) ([]Hit, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.index == nil {
		return nil, domain.ErrStoreUnavailable
	}

	match := bleve.NewMatchQuery(text)
	match.SetField(contentKey)

	var q query.Query = match
	if len(filter) > 0 {
		must := make([]query.Query, 0, len(filter))
		for _, key := range fn.SortedKeys(filter) {
			tq := bleve.NewTermQuery(filter[key])
			tq.SetField(key)
			must = append(must, tq)
		}
		bq := query.NewBooleanQuery(must, []query.Query{match}, nil)
		bq.SetMinShould(0)
		q = bq
	}

	req := bleve.NewSearchRequestOptions(q, k, 0, false)
	req.Fields = []string{"*"}
	res, err := l.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		md := make(chunk.Metadata, len(h.Fields))
		var content string
		for key, v := range h.Fields {
			if key == contentKey {
				content, _ = v.(string)
				continue
			}
			md[key] = v
		}
		hits = append(hits, Hit{
			ChunkID:  h.ID,
			Content:  content,
			Kind:     md.Kind(),
			Metadata: md,
			Score:    clamp01(h.Score / (1 + h.Score)),
		})
	}
	return hits, nil
}

// ListDistinctMetadata samples up to sampleLimit documents.
func (l *LexicalStore) ListDistinctMetadata(_ context.Context, sampleLimit int) (Inventory, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.index == nil {
		return Inventory{}, domain.ErrStoreUnavailable
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), sampleLimit, 0, false)
	req.Fields = []string{chunk.KeyCategory, chunk.KeySubcategory, chunk.KeyVendor, chunk.KeyMonthYear, chunk.KeyChunkType}
	res, err := l.index.Search(req)
	if err != nil {
		return Inventory{}, fmt.Errorf("semantic: sample: %w", err)
	}
	set := newInventorySet()
	for _, h := range res.Hits {
		set.add(chunk.Metadata(h.Fields))
	}
	return set.inventory(), nil
}

// Count returns the number of indexed documents.
func (l *LexicalStore) Count(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.index == nil {
		return 0, domain.ErrStoreUnavailable
	}
	n, err := l.index.DocCount()
	if err != nil {
		return 0, fmt.Errorf("semantic: count: %w", err)
	}
	return int(n), nil
}

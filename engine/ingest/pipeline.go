// Package ingest builds the semantic index from trial-balance documents:
// extract, validate, chunk, and upsert, triggered from the CLI, the API,
// NATS, or a cron schedule.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/WessleyAI/condo-ledger/engine/chunk"
	"github.com/WessleyAI/condo-ledger/engine/domain"
	"github.com/WessleyAI/condo-ledger/engine/extract"
	"github.com/WessleyAI/condo-ledger/engine/semantic"
	"github.com/WessleyAI/condo-ledger/pkg/fn"
	"github.com/WessleyAI/condo-ledger/pkg/metrics"
)

// Triggers label where a rebuild came from.
const (
	TriggerManual = "manual"
	TriggerNATS   = "nats"
	TriggerCron   = "cron"
)

// ErrEmptyRequest is returned for a request naming neither a directory nor a CSV file.
var ErrEmptyRequest = errors.New("ingest: request needs a directory or a csv file")

// Request asks for one index build. CSV, when set, replaces PDF extraction.
type Request struct {
	Dir     string `json:"dir,omitempty"`
	CSV     string `json:"csv,omitempty"`
	Reset   bool   `json:"reset"`
	Trigger string `json:"trigger,omitempty"`
}

// Report summarises one build.
type Report struct {
	Trigger         string               `json:"trigger"`
	Documents       int                  `json:"documents"`
	FailedDocuments []string             `json:"failed_documents,omitempty"`
	Expenses        int                  `json:"expenses"`
	Invalid         int                  `json:"invalid"`
	Chunks          int                  `json:"chunks"`
	Index           semantic.IndexReport `json:"index"`
	Duration        time.Duration        `json:"duration_ns"`

	// Records are the validated expenses of the build.
	Records []domain.ExpenseRecord `json:"-"`
}

// DocumentReader reads one document into expense records. *extract.Reader
// implements it.
type DocumentReader interface {
	Read(path string) ([]domain.ExpenseRecord, error)
}

// Deps holds the external dependencies for the index pipeline.
type Deps struct {
	Reader  DocumentReader
	Builder chunk.Builder
	Store   semantic.Store
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// batch is the value flowing between stages.
type batch struct {
	req     Request
	records []domain.ExpenseRecord
	chunks  []chunk.Chunk
	report  Report
}

// --- Pipeline Stages ---

// NewExtract reads every PDF in Request.Dir, or the Request.CSV snapshot.
// Documents that fail to extract are logged and listed in the report.
func NewExtract(r DocumentReader, log *slog.Logger) fn.Stage[Request, batch] {
	return func(_ context.Context, req Request) fn.Result[batch] {
		b := batch{req: req, report: Report{Trigger: req.Trigger}}
		switch {
		case req.CSV != "":
			recs, err := LoadCSVFile(req.CSV)
			if err != nil {
				return fn.Err[batch](err)
			}
			b.records = recs
			b.report.Documents = 1
			return fn.Ok(b)
		case req.Dir == "":
			return fn.Err[batch](ErrEmptyRequest)
		}

		paths, err := extract.ListPDFs(req.Dir)
		if err != nil {
			return fn.Err[batch](fmt.Errorf("ingest: list %s: %w", req.Dir, err))
		}
		for _, p := range paths {
			recs, err := r.Read(p)
			if err != nil {
				log.Warn("ingest: document skipped", "document", filepath.Base(p), "err", err)
				b.report.FailedDocuments = append(b.report.FailedDocuments, filepath.Base(p))
				continue
			}
			b.report.Documents++
			b.records = append(b.records, recs...)
		}
		return fn.Ok(b)
	}
}

// NewValidate drops records that fail domain validation.
func NewValidate(log *slog.Logger) fn.Stage[batch, batch] {
	return func(_ context.Context, b batch) fn.Result[batch] {
		valid := b.records[:0:0]
		for _, rec := range b.records {
			if err := domain.ValidateExpense(rec); err != nil {
				log.Debug("ingest: invalid expense", "id", rec.ID, "err", err)
				b.report.Invalid++
				continue
			}
			valid = append(valid, rec)
		}
		b.records = valid
		b.report.Expenses = len(valid)
		return fn.Ok(b)
	}
}

// NewBuildChunks turns records into chunks. An empty reset build still goes
// on to the index stage so the old collection is dropped.
func NewBuildChunks(builder chunk.Builder) fn.Stage[batch, batch] {
	return func(_ context.Context, b batch) fn.Result[batch] {
		b.chunks = builder.BuildAll(b.records)
		b.report.Chunks = len(b.chunks)
		if len(b.chunks) == 0 && !b.req.Reset {
			return fn.Err[batch](fmt.Errorf("ingest: %w", domain.ErrNoChunks))
		}
		return fn.Ok(b)
	}
}

// NewIndex upserts the chunks, dropping the collection first on Reset.
func NewIndex(store semantic.Store) fn.Stage[batch, Report] {
	return func(ctx context.Context, b batch) fn.Result[Report] {
		rep, err := store.UpsertBatch(ctx, b.chunks, b.req.Reset)
		b.report.Index = rep
		b.report.Records = b.records
		if err != nil {
			return fn.Err[Report](fmt.Errorf("ingest: index: %w", err))
		}
		return fn.Ok(b.report)
	}
}

// NewPipeline constructs the index pipeline with all stages wired.
func NewPipeline(deps Deps) fn.Stage[Request, Report] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	// Extract → Validate → Chunk → Index
	extracted := fn.TracedStage("extract", log, NewExtract(deps.Reader, log))
	validated := fn.Then(extracted, fn.TracedStage("validate", log, NewValidate(log)))
	chunked := fn.Then(validated, fn.TracedStage("chunk", log, NewBuildChunks(deps.Builder)))
	return fn.Then(chunked, fn.TracedStage("index", log, NewIndex(deps.Store)))
}

// Indexer runs the pipeline one build at a time.
type Indexer struct {
	mu       sync.Mutex
	pipeline fn.Stage[Request, Report]
	log      *slog.Logger
	metrics  *metrics.Metrics
}

// NewIndexer creates an Indexer. A nil Reader uses the PDF reader with the
// default keyword table.
func NewIndexer(deps Deps) *Indexer {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Reader == nil {
		deps.Reader = extract.NewReader(nil, nil, "")
	}
	return &Indexer{pipeline: NewPipeline(deps), log: deps.Logger, metrics: deps.Metrics}
}

// Run executes one build. Concurrent calls wait for the running build.
func (ix *Indexer) Run(ctx context.Context, req Request) (Report, error) {
	if req.Trigger == "" {
		req.Trigger = TriggerManual
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	start := time.Now()
	rep, err := ix.pipeline(ctx, req).Unwrap()
	rep.Trigger = req.Trigger
	rep.Duration = time.Since(start)
	ix.metrics.ObserveIndex(req.Trigger, rep.Index.Indexed, rep.Index.Skipped, err)
	if err != nil {
		ix.log.Error("ingest: build failed", "trigger", req.Trigger, "err", err)
		return rep, err
	}
	ix.log.Info("ingest: build done",
		"trigger", req.Trigger,
		"documents", rep.Documents,
		"failed_documents", len(rep.FailedDocuments),
		"expenses", rep.Expenses,
		"chunks", rep.Chunks,
		"indexed", rep.Index.Indexed,
		"skipped", rep.Index.Skipped,
		"duration", rep.Duration,
	)
	return rep, nil
}

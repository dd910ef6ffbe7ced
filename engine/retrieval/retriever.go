// Package retrieval turns questions into filtered semantic searches. Retriever
// holds the search primitives; Router picks one for a free-text question.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/condo-ledger/engine/chunk"
	"github.com/WessleyAI/condo-ledger/engine/domain"
	"github.com/WessleyAI/condo-ledger/engine/semantic"
	"github.com/WessleyAI/condo-ledger/pkg/fn"
	"github.com/WessleyAI/condo-ledger/pkg/metrics"
	"github.com/WessleyAI/condo-ledger/pkg/money"
	"github.com/WessleyAI/condo-ledger/pkg/resilience"
)

// Options configures the retriever and the router.
type Options struct {
	// ReferenceYear is used when a question names a month without a year.
	ReferenceYear int
	// RelevanceFloor is the score below which a generic match is considered forced.
	RelevanceFloor float64
	// FloorWindow is how many top results must all fall below the floor.
	FloorWindow int
	// SampleLimit bounds the inventory sample.
	SampleLimit   int
	SearchTimeout time.Duration

	KMonth    int
	KVendor   int
	KCategory int
	KSummary  int
	KGeneric  int

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// DefaultOptions returns the router defaults.
func DefaultOptions() Options {
	return Options{
		ReferenceYear:  2025,
		RelevanceFloor: 0.3,
		FloorWindow:    3,
		SampleLimit:    1000,
		SearchTimeout:  5 * time.Second,
		KMonth:         30,
		KVendor:        15,
		KCategory:      15,
		KSummary:       10,
		KGeneric:       12,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ReferenceYear == 0 {
		o.ReferenceYear = d.ReferenceYear
	}
	if o.RelevanceFloor == 0 {
		o.RelevanceFloor = d.RelevanceFloor
	}
	if o.FloorWindow <= 0 {
		o.FloorWindow = d.FloorWindow
	}
	if o.SampleLimit <= 0 {
		o.SampleLimit = d.SampleLimit
	}
	if o.SearchTimeout <= 0 {
		o.SearchTimeout = d.SearchTimeout
	}
	o.KMonth = orDefault(o.KMonth, d.KMonth)
	o.KVendor = orDefault(o.KVendor, d.KVendor)
	o.KCategory = orDefault(o.KCategory, d.KCategory)
	o.KSummary = orDefault(o.KSummary, d.KSummary)
	o.KGeneric = orDefault(o.KGeneric, d.KGeneric)
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Retriever wraps a semantic.Store with a timeout and a circuit breaker.
type Retriever struct {
	store   semantic.Store
	breaker *resilience.Breaker
	opts    Options
}

// NewRetriever creates a Retriever. A nil breaker gets the defaults.
func NewRetriever(store semantic.Store, breaker *resilience.Breaker, opts Options) *Retriever {
	if breaker == nil {
		breaker = resilience.NewBreaker(resilience.BreakerOpts{Name: "store"})
	}
	return &Retriever{store: store, breaker: breaker, opts: opts.withDefaults()}
}

// Options returns the effective options.
func (r *Retriever) Options() Options { return r.opts }

func (r *Retriever) guarded(ctx context.Context, op string, f func(context.Context) error) error {
	err := r.breaker.Call(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, r.opts.SearchTimeout)
		defer cancel()
		return f(ctx)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("retrieval: %s: %w: %w", op, domain.ErrRetrievalTimeout, err)
	case errors.Is(err, resilience.ErrOpen):
		return fmt.Errorf("retrieval: %s: %w: %w", op, domain.ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("retrieval: %s: %w", op, err)
	}
}

func (r *Retriever) hits(ctx context.Context, text string, k int, filter map[string]string) ([]semantic.Hit, error) {
	var hits []semantic.Hit
	err := r.guarded(ctx, "search", func(ctx context.Context) error {
		var err error
		hits, err = r.store.Query(ctx, text, k, filter)
		return err
	})
	return hits, err
}

// Search runs one similarity search. An empty filter is unfiltered.
func (r *Retriever) Search(ctx context.Context, text string, k int, filter map[string]string) (QueryResult, error) {
	hits, err := r.hits(ctx, text, k, filter)
	if err != nil {
		return QueryResult{}, err
	}
	return hitResult(text, StrategyDirect, filter, hits), nil
}

// AvailableFilters samples the live index for known metadata values.
func (r *Retriever) AvailableFilters(ctx context.Context) (semantic.Inventory, error) {
	var inv semantic.Inventory
	err := r.guarded(ctx, "inventory", func(ctx context.Context) error {
		var err error
		inv, err = r.store.ListDistinctMetadata(ctx, r.opts.SampleLimit)
		return err
	})
	return inv, err
}

// ByCategory searches one category, optionally within a month. k defaults to 20.
func (r *Retriever) ByCategory(ctx context.Context, category, monthYear string, k int) (QueryResult, error) {
	filter := map[string]string{chunk.KeyCategory: category}
	text := category + " expenses"
	if monthYear != "" {
		filter[chunk.KeyMonthYear] = monthYear
		text += " " + monthYear
	}
	return r.Search(ctx, text, orDefault(k, 20), filter)
}

// ByVendor searches one vendor. k defaults to 20.
func (r *Retriever) ByVendor(ctx context.Context, vendor string, k int) (QueryResult, error) {
	return r.Search(ctx, vendor+" payments expenses", orDefault(k, 20), map[string]string{chunk.KeyVendor: vendor})
}

// ByMonth searches everything in one month. k defaults to 30.
func (r *Retriever) ByMonth(ctx context.Context, monthYear string, k int) (QueryResult, error) {
	return r.Search(ctx, "expenses "+monthYear+" monthly summary", orDefault(k, 30),
		map[string]string{chunk.KeyMonthYear: monthYear})
}

// AmountRange bounds an amount search. A nil bound is open.
type AmountRange struct {
	Min *money.Amount
	Max *money.Amount
}

func (a AmountRange) contains(amt money.Amount) bool {
	if a.Min != nil && amt.Cmp(*a.Min) < 0 {
		return false
	}
	if a.Max != nil && amt.Cmp(*a.Max) > 0 {
		return false
	}
	return true
}

func (a AmountRange) String() string {
	lo, hi := "0", "max"
	if a.Min != nil {
		lo = a.Min.Format()
	}
	if a.Max != nil {
		hi = a.Max.Format()
	}
	return lo + " - " + hi
}

// ByAmountRange searches 2k unfiltered results and keeps those inside the
// range. Hits without an amount (summaries) are kept.
func (r *Retriever) ByAmountRange(ctx context.Context, rng AmountRange, text string, k int) (QueryResult, error) {
	if text == "" {
		text = "expenses"
	}
	k = orDefault(k, 20)
	hits, err := r.hits(ctx, text, 2*k, nil)
	if err != nil {
		return QueryResult{}, err
	}
	kept := fn.Filter(hits, func(h semantic.Hit) bool {
		amt, ok := h.Metadata.Amount()
		return !ok || rng.contains(amt)
	})
	return hitResult(fmt.Sprintf("%s (amount: %s)", text, rng), StrategyDirect, nil, fn.Take(kept, k)), nil
}

// MonthReport gathers the monthly summary, category summaries, and top expenses for one month.
type MonthReport struct {
	MonthYear         string         `json:"month_year"`
	MonthlySummary    []semantic.Hit `json:"monthly_summary"`
	CategorySummaries []semantic.Hit `json:"category_summaries"`
	TopExpenses       []semantic.Hit `json:"top_expenses"`
}

// MonthlySummary runs the three month searches concurrently.
func (r *Retriever) MonthlySummary(ctx context.Context, monthYear string) (MonthReport, error) {
	byKind := func(kind chunk.Kind, text string, k int) func() fn.Result[[]semantic.Hit] {
		return func() fn.Result[[]semantic.Hit] {
			hits, err := r.hits(ctx, text, k, map[string]string{
				chunk.KeyChunkType: string(kind),
				chunk.KeyMonthYear: monthYear,
			})
			return fn.FromPair(hits, err)
		}
	}
	res := fn.FanOutResult(
		byKind(chunk.KindMonthly, "monthly summary "+monthYear, 5),
		byKind(chunk.KindCategory, "category expenses "+monthYear, 10),
		byKind(chunk.KindExpense, "expenses "+monthYear, 15),
	)
	parts, err := res.Unwrap()
	if err != nil {
		return MonthReport{}, err
	}
	return MonthReport{
		MonthYear:         monthYear,
		MonthlySummary:    nonNil(parts[0]),
		CategorySummaries: nonNil(parts[1]),
		TopExpenses:       nonNil(parts[2]),
	}, nil
}

// VendorReport is the vendor summary plus the vendor's transactions.
type VendorReport struct {
	Vendor       string         `json:"vendor"`
	Summary      []semantic.Hit `json:"summary"`
	Transactions []semantic.Hit `json:"transactions"`
}

// VendorAnalysis fetches up to 5 vendor summaries and 20 transactions.
func (r *Retriever) VendorAnalysis(ctx context.Context, vendor string) (VendorReport, error) {
	summary, err := r.hits(ctx, vendor+" vendor summary", 5, map[string]string{
		chunk.KeyChunkType: string(chunk.KindVendor), chunk.KeyVendor: vendor,
	})
	if err != nil {
		return VendorReport{}, err
	}
	txns, err := r.hits(ctx, vendor+" payments", 20, map[string]string{
		chunk.KeyChunkType: string(chunk.KindExpense), chunk.KeyVendor: vendor,
	})
	if err != nil {
		return VendorReport{}, err
	}
	return VendorReport{Vendor: vendor, Summary: nonNil(summary), Transactions: nonNil(txns)}, nil
}

// CategoryReport is a category's monthly summaries plus its individual expenses.
type CategoryReport struct {
	Category           string         `json:"category"`
	MonthlySummaries   []semantic.Hit `json:"monthly_summaries"`
	IndividualExpenses []semantic.Hit `json:"individual_expenses"`
}

// CategoryAnalysis fetches up to 10 category summaries and 20 expenses.
func (r *Retriever) CategoryAnalysis(ctx context.Context, category string) (CategoryReport, error) {
	summaries, err := r.hits(ctx, category+" category summary", 10, map[string]string{
		chunk.KeyChunkType: string(chunk.KindCategory), chunk.KeyCategory: category,
	})
	if err != nil {
		return CategoryReport{}, err
	}
	expenses, err := r.hits(ctx, category+" expenses", 20, map[string]string{
		chunk.KeyChunkType: string(chunk.KindExpense), chunk.KeyCategory: category,
	})
	if err != nil {
		return CategoryReport{}, err
	}
	return CategoryReport{Category: category, MonthlySummaries: nonNil(summaries), IndividualExpenses: nonNil(expenses)}, nil
}

func orDefault(k, d int) int {
	if k <= 0 {
		return d
	}
	return k
}

func nonNil(h []semantic.Hit) []semantic.Hit {
	if h == nil {
		return []semantic.Hit{}
	}
	return h
}

package retrieval

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/WessleyAI/condo-ledger/engine/chunk"
	"github.com/WessleyAI/condo-ledger/engine/domain"
	"github.com/WessleyAI/condo-ledger/engine/semantic"
)

// query is the per-question routing state shared by the rules.
type query struct {
	text      string
	lower     string
	inv       semantic.Inventory
	month     monthMention
	hasMonth  bool
	personnel []string
}

// rule is one row of the routing table. The first rule whose match returns
// true handles the question.
type rule struct {
	strategy Strategy
	match    func(*query) bool
	run      func(context.Context, *query) QueryResult
}

// Router classifies questions and runs the matching retrieval strategy.
type Router struct {
	ret   *Retriever
	opts  Options
	rules []rule

	personnel keywordSet
	vendor    keywordSet
	category  keywordSet
	summary   keywordSet
}

// NewRouter builds the routing table over ret.
func NewRouter(ret *Retriever) *Router {
	r := &Router{
		ret:       ret,
		opts:      ret.opts,
		personnel: newKeywordSet(personnelTerms...),
		vendor:    newKeywordSet(vendorTerms...),
		category:  newKeywordSet(categoryTerms...),
		summary:   newKeywordSet(summaryTerms...),
	}
	r.rules = []rule{
		{StrategyMonth, r.monthMissing, r.missMonth},
		{StrategyPersonnel, r.personnelMissing, r.missPersonnel},
		{StrategyMonth, func(q *query) bool { return q.hasMonth }, r.monthFiltered},
		{StrategyVendor, r.isVendor, r.unfiltered(StrategyVendor, r.opts.KVendor)},
		{StrategyCategory, r.isCategory, r.unfiltered(StrategyCategory, r.opts.KCategory)},
		{StrategySummary, func(q *query) bool { return r.summary.any(q.lower) }, r.unfiltered(StrategySummary, r.opts.KSummary)},
		{StrategyGeneric, func(*query) bool { return true }, r.generic},
	}
	return r
}

// Retriever returns the underlying retriever.
func (r *Router) Retriever() *Retriever { return r.ret }

// Route answers a question with the first matching strategy. It never returns
// an error: store failures become a RetrievalUnavailable miss.
func (r *Router) Route(ctx context.Context, question string) QueryResult {
	ctx, span := otel.Tracer("engine/retrieval").Start(ctx, "retrieval.Route")
	defer span.End()
	start := time.Now()

	res := r.route(ctx, question)

	missKind := ""
	if res.Miss != nil {
		missKind = string(res.Miss.Kind)
		if res.Miss.Kind == RetrievalUnavailable {
			span.SetStatus(codes.Error, res.Miss.Error)
		}
	}
	span.SetAttributes(
		attribute.String("strategy", string(res.Strategy)),
		attribute.String("miss", missKind),
		attribute.Int("results", res.TotalResults),
	)
	r.opts.Metrics.ObserveQuery(string(res.Strategy), missKind, time.Since(start))
	r.opts.Logger.Info("route", "strategy", res.Strategy, "miss", missKind,
		"results", res.TotalResults, "duration", time.Since(start))
	return res
}

func (r *Router) route(ctx context.Context, question string) QueryResult {
	inv, err := r.ret.AvailableFilters(ctx)
	if err != nil {
		r.opts.Logger.Warn("retrieval: inventory unavailable", "err", err)
		return unavailable(question, StrategyGeneric)
	}

	q := &query{text: question, lower: strings.ToLower(question), inv: inv}
	q.month, q.hasMonth = detectMonth(question, r.opts.ReferenceYear)
	q.personnel = r.personnel.find(q.lower)

	for _, rl := range r.rules {
		if rl.match(q) {
			return rl.run(ctx, q)
		}
	}
	return r.generic(ctx, q)
}

func (r *Router) monthMissing(q *query) bool {
	return q.hasMonth && !q.inv.HasMonth(q.month.month.Key())
}

func (r *Router) missMonth(_ context.Context, q *query) QueryResult {
	return missResult(q.text, StrategyMonth, monthMiss(q))
}

func (r *Router) personnelMissing(q *query) bool {
	if len(q.personnel) == 0 {
		return false
	}
	_, ok := personnelCategory(q.inv.Categories)
	return !ok
}

func (r *Router) missPersonnel(_ context.Context, q *query) QueryResult {
	return missResult(q.text, StrategyPersonnel, personnelMiss(q))
}

func (r *Router) monthFiltered(ctx context.Context, q *query) QueryResult {
	filter := map[string]string{chunk.KeyMonthYear: q.month.month.Key()}
	hits, err := r.ret.hits(ctx, q.text, r.opts.KMonth, filter)
	if err != nil {
		r.opts.Logger.Warn("retrieval: month search failed", "month", q.month.month.Key(), "err", err)
		return unavailable(q.text, StrategyMonth)
	}
	return hitResult(q.text, StrategyMonth, filter, hits)
}

func (r *Router) isVendor(q *query) bool {
	if r.vendor.any(q.lower) {
		return true
	}
	return newKeywordSet(vendorTokens(q.inv.Vendors)...).any(q.lower)
}

func (r *Router) isCategory(q *query) bool {
	if r.category.any(q.lower) {
		return true
	}
	known := slices.DeleteFunc(slices.Clone(q.inv.Categories), func(c string) bool { return c == domain.CategoryOther })
	return newKeywordSet(categoryWords(known)...).any(q.lower)
}

func (r *Router) unfiltered(s Strategy, k int) func(context.Context, *query) QueryResult {
	return func(ctx context.Context, q *query) QueryResult {
		hits, err := r.ret.hits(ctx, q.text, k, nil)
		if err != nil {
			r.opts.Logger.Warn("retrieval: search failed", "strategy", s, "err", err)
			return unavailable(q.text, s)
		}
		return hitResult(q.text, s, nil, hits)
	}
}

func (r *Router) generic(ctx context.Context, q *query) QueryResult {
	hits, err := r.ret.hits(ctx, q.text, r.opts.KGeneric, nil)
	if err != nil {
		r.opts.Logger.Warn("retrieval: generic search failed", "err", err)
		return unavailable(q.text, StrategyGeneric)
	}
	if r.belowFloor(hits) {
		return missResult(q.text, StrategyGeneric, genericMiss(q))
	}
	return hitResult(q.text, StrategyGeneric, nil, hits)
}

// belowFloor reports whether there are no hits or every one of the top
// FloorWindow hits scores under RelevanceFloor.
func (r *Router) belowFloor(hits []semantic.Hit) bool {
	for i, h := range hits {
		if i == r.opts.FloorWindow {
			break
		}
		if h.Score >= r.opts.RelevanceFloor {
			return false
		}
	}
	return true
}

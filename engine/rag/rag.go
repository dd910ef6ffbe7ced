// Package rag orchestrates one question: validate, route to a filtered
// semantic search, compose the answer, and record the turn in the
// conversation store.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/condo-ledger/engine/answer"
	"github.com/WessleyAI/condo-ledger/engine/conversation"
	"github.com/WessleyAI/condo-ledger/engine/domain"
	"github.com/WessleyAI/condo-ledger/engine/retrieval"
	"github.com/WessleyAI/condo-ledger/engine/semantic"
)

// Health statuses.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Service is the ledger question-answering service.
type Service struct {
	store      semantic.Store
	router     *retrieval.Router
	composer   *answer.Composer
	conv       *conversation.Store
	completion string
	timeout    time.Duration
	logger     *slog.Logger
}

// Options configures a Service.
type Options struct {
	// Completion names the configured completion provider for health output;
	// "" or "none" means answers are always formatted locally.
	Completion    string
	HealthTimeout time.Duration
	Logger        *slog.Logger
}

// New creates a Service.
func New(store semantic.Store, router *retrieval.Router, composer *answer.Composer, conv *conversation.Store, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HealthTimeout <= 0 {
		opts.HealthTimeout = 3 * time.Second
	}
	return &Service{
		store:      store,
		router:     router,
		composer:   composer,
		conv:       conv,
		completion: opts.Completion,
		timeout:    opts.HealthTimeout,
		logger:     opts.Logger,
	}
}

// Response is the outcome of one question.
type Response struct {
	Answer         string              `json:"answer"`
	Question       string              `json:"question"`
	ConversationID string              `json:"conversation_id"`
	RelevantData   answer.RelevantData `json:"relevant_data"`
	Suggestions    []string            `json:"suggestions"`
	Success        bool                `json:"success"`
	ErrorMessage   string              `json:"error_message,omitempty"`
	Strategy       retrieval.Strategy  `json:"strategy"`
	Source         answer.Source       `json:"source"`
	TotalResults   int                 `json:"total_results"`
}

// Query answers question within conversation convID. It returns a
// *domain.ValidationError for a bad question and an error matching
// domain.ErrStoreUnavailable when retrieval failed; the Response is filled
// in either way. Routing misses are successful responses.
func (s *Service) Query(ctx context.Context, question, convID string) (Response, error) {
	convID = conversation.ID(convID)
	resp := Response{
		Question:       question,
		ConversationID: convID,
		RelevantData:   answer.ExtractRelevantData(nil),
		Suggestions:    []string{},
	}
	if err := domain.ValidateQuestion(question); err != nil {
		resp.ErrorMessage = err.Error()
		return resp, err
	}

	res := s.router.Route(ctx, question)
	resp.Strategy = res.Strategy
	resp.TotalResults = res.TotalResults

	if res.Miss != nil && res.Miss.Kind == retrieval.RetrievalUnavailable {
		resp.Answer = answer.FormatMiss(res.Miss)
		resp.Suggestions = res.Miss.Suggestions
		resp.ErrorMessage = res.Miss.Error
		resp.Source = answer.SourceMiss
		return resp, res.Miss.Err()
	}

	ans := s.composer.Compose(ctx, question, res, s.conv.History(convID))
	s.conv.Append(convID, question, ans.Text)

	resp.Answer = ans.Text
	resp.RelevantData = ans.RelevantData
	resp.Suggestions = ans.Suggestions
	resp.Source = ans.Source
	resp.Success = true
	return resp, nil
}

// Health reports store and completion status.
type Health struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	Message    string            `json:"message"`
	Documents  int               `json:"documents"`
}

// Health counts indexed chunks: a positive count is healthy, zero is
// degraded, and a store error is unhealthy.
func (s *Service) Health(ctx context.Context) Health {
	h := Health{Components: map[string]string{}}
	if s.completion == "" || s.completion == "none" {
		h.Components["completion"] = "not configured"
	} else {
		h.Components["completion"] = s.completion
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	n, err := s.store.Count(ctx)
	switch {
	case err != nil:
		s.logger.Warn("rag: health count failed", "err", err)
		h.Status = StatusUnhealthy
		h.Components["semantic_store"] = "error"
		h.Message = "semantic store unavailable"
	case n == 0:
		h.Status = StatusDegraded
		h.Components["semantic_store"] = "empty"
		h.Message = "degraded with document count 0"
	default:
		h.Status = StatusHealthy
		h.Components["semantic_store"] = fmt.Sprintf("healthy (%d documents)", n)
		h.Message = "all systems operational"
	}
	h.Documents = n
	return h
}

// Filters returns the known metadata values.
func (s *Service) Filters(ctx context.Context) (semantic.Inventory, error) {
	return s.router.Retriever().AvailableFilters(ctx)
}

// Month returns the report for one month key.
func (s *Service) Month(ctx context.Context, monthYear string) (retrieval.MonthReport, error) {
	if _, err := domain.ParseMonthYear(monthYear); err != nil {
		return retrieval.MonthReport{}, err
	}
	return s.router.Retriever().MonthlySummary(ctx, monthYear)
}

// CategoryResult is a category search plus its analysis.
type CategoryResult struct {
	Category  string                `json:"category"`
	MonthYear string                `json:"month_year,omitempty"`
	Results   retrieval.QueryResult `json:"results"`
	Analysis  answer.Analysis       `json:"analysis"`
}

// Category searches one category, optionally within a month.
func (s *Service) Category(ctx context.Context, category, monthYear string) (CategoryResult, error) {
	if category == "" {
		return CategoryResult{}, domain.NewValidationError("category", category, domain.ErrInvalidQuery)
	}
	if monthYear != "" {
		if _, err := domain.ParseMonthYear(monthYear); err != nil {
			return CategoryResult{}, err
		}
	}
	res, err := s.router.Retriever().ByCategory(ctx, category, monthYear, 0)
	if err != nil {
		return CategoryResult{}, err
	}
	return CategoryResult{
		Category:  category,
		MonthYear: monthYear,
		Results:   res,
		Analysis:  answer.Summarize(res.Results),
	}, nil
}

// IsUnavailable reports whether err means the store could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, domain.ErrStoreUnavailable) || errors.Is(err, domain.ErrRetrievalTimeout)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/WessleyAI/condo-ledger/engine/domain"
	"github.com/WessleyAI/condo-ledger/engine/rag"
	"github.com/WessleyAI/condo-ledger/engine/retrieval"
	"github.com/WessleyAI/condo-ledger/engine/semantic"
)

// ledger is the part of rag.Service the handlers use.
type ledger interface {
	Query(ctx context.Context, question, convID string) (rag.Response, error)
	Health(ctx context.Context) rag.Health
	Filters(ctx context.Context) (semantic.Inventory, error)
	Month(ctx context.Context, monthYear string) (retrieval.MonthReport, error)
	Category(ctx context.Context, category, monthYear string) (rag.CategoryResult, error)
}

// QueryRequest is the JSON body for POST /query.
type QueryRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case rag.IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// userMessage is the plain-language text for an error status.
func userMessage(code int, err error) string {
	switch code {
	case http.StatusBadRequest:
		return err.Error()
	case http.StatusServiceUnavailable:
		return "the expense index is unavailable, please try again shortly"
	default:
		return "internal server error"
	}
}

func handleQuery(svc ledger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
			return
		}

		resp, err := svc.Query(r.Context(), req.Question, req.ConversationID)
		if err != nil {
			code := statusFor(err)
			if code == http.StatusInternalServerError {
				logger.Error("query failed", "err", err)
			}
			resp.Success = false
			resp.ErrorMessage = userMessage(code, err)
			writeJSON(w, code, resp)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleFilters(svc ledger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inv, err := svc.Filters(r.Context())
		if err != nil {
			logger.Warn("filters failed", "err", err)
			code := statusFor(err)
			writeJSON(w, code, errorBody{Error: userMessage(code, err)})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "filters": inv})
	}
}

func handleHealth(svc ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := svc.Health(r.Context())
		code := http.StatusOK
		if h.Status == rag.StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, h)
	}
}

func handleMonth(svc ledger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := svc.Month(r.Context(), r.PathValue("month_year"))
		if err != nil {
			code := statusFor(err)
			if code != http.StatusBadRequest {
				logger.Warn("month summary failed", "err", err)
			}
			writeJSON(w, code, errorBody{Error: userMessage(code, err)})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "summary": rep})
	}
}

func handleCategory(svc ledger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Category(r.Context(), r.PathValue("category"), r.URL.Query().Get("month_year"))
		if err != nil {
			code := statusFor(err)
			if code != http.StatusBadRequest {
				logger.Warn("category search failed", "err", err)
			}
			writeJSON(w, code, errorBody{Error: userMessage(code, err)})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "results": res})
	}
}

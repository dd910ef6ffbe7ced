package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/WessleyAI/condo-ledger/engine/domain"
	"github.com/WessleyAI/condo-ledger/engine/rag"
	"github.com/WessleyAI/condo-ledger/engine/retrieval"
	"github.com/WessleyAI/condo-ledger/engine/semantic"
	"github.com/WessleyAI/condo-ledger/pkg/config"
	"github.com/WessleyAI/condo-ledger/pkg/metrics"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// mockLedger returns canned values and records the last question.
type mockLedger struct {
	resp     rag.Response
	queryErr error
	health   rag.Health
	inv      semantic.Inventory
	invErr   error
	month    retrieval.MonthReport
	monthErr error
	cat      rag.CategoryResult
	catErr   error

	question, convID, category, catMonth string
}

func (m *mockLedger) Query(_ context.Context, q, conv string) (rag.Response, error) {
	m.question, m.convID = q, conv
	return m.resp, m.queryErr
}

func (m *mockLedger) Health(context.Context) rag.Health { return m.health }

func (m *mockLedger) Filters(context.Context) (semantic.Inventory, error) { return m.inv, m.invErr }

func (m *mockLedger) Month(context.Context, string) (retrieval.MonthReport, error) {
	return m.month, m.monthErr
}

func (m *mockLedger) Category(_ context.Context, c, month string) (rag.CategoryResult, error) {
	m.category, m.catMonth = c, month
	return m.cat, m.catErr
}

func testServer(t *testing.T, l ledger) *httptest.Server {
	t.Helper()
	m := metrics.New()
	cfg := config.ServerConfig{CORSOrigins: []string{"*"}}
	srv := httptest.NewServer(newHandler(l, m.Handler(), m, cfg, discard))
	t.Cleanup(srv.Close)
	return srv
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func postQuery(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/query", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestQuery_OK(t *testing.T) {
	l := &mockLedger{resp: rag.Response{Answer: "**Total: R$ 1.000,00**", Success: true, Strategy: "month_filtered"}}
	srv := testServer(t, l)

	resp := postQuery(t, srv, `{"question":"January 2024","conversation_id":"c1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got rag.Response
	decode(t, resp, &got)
	if !got.Success || got.Answer == "" {
		t.Errorf("response = %+v", got)
	}
	if l.question != "January 2024" || l.convID != "c1" {
		t.Errorf("forwarded %q/%q", l.question, l.convID)
	}
}

func TestQuery_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		code int
		msg  string
	}{
		{"bad json", `{`, nil, http.StatusBadRequest, ""},
		{"validation", `{"question":""}`, domain.NewValidationError("question", "", domain.ErrInvalidQuery), http.StatusBadRequest, "question"},
		{"unavailable", `{"question":"x"}`, fmt.Errorf("retrieval: %w", domain.ErrStoreUnavailable), http.StatusServiceUnavailable, "unavailable"},
		{"internal", `{"question":"x"}`, fmt.Errorf("boom"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testServer(t, &mockLedger{queryErr: tt.err})
			resp := postQuery(t, srv, tt.body)
			if resp.StatusCode != tt.code {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.code)
			}
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if tt.msg != "" && !strings.Contains(string(body), tt.msg) {
				t.Errorf("body %s missing %q", body, tt.msg)
			}
			if strings.Contains(string(body), "boom") {
				t.Errorf("internal error leaked: %s", body)
			}
		})
	}
}

func TestFilters(t *testing.T) {
	srv := testServer(t, &mockLedger{inv: semantic.Inventory{Categories: []string{"utilities"}}})
	resp, err := http.Get(srv.URL + "/filters")
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Success bool               `json:"success"`
		Filters semantic.Inventory `json:"filters"`
	}
	decode(t, resp, &got)
	if !got.Success || len(got.Filters.Categories) != 1 {
		t.Errorf("got %+v", got)
	}

	srv = testServer(t, &mockLedger{invErr: domain.ErrStoreUnavailable})
	resp, err = http.Get(srv.URL + "/filters")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		status string
		code   int
	}{
		{rag.StatusHealthy, http.StatusOK},
		{rag.StatusDegraded, http.StatusOK},
		{rag.StatusUnhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			srv := testServer(t, &mockLedger{health: rag.Health{Status: tt.status}})
			resp, err := http.Get(srv.URL + "/health")
			if err != nil {
				t.Fatal(err)
			}
			var h rag.Health
			decode(t, resp, &h)
			if resp.StatusCode != tt.code || h.Status != tt.status {
				t.Errorf("got %d %q", resp.StatusCode, h.Status)
			}
		})
	}
}

func TestMonth(t *testing.T) {
	srv := testServer(t, &mockLedger{monthErr: domain.NewValidationError("month_year", "2024-13", domain.ErrInvalidMonth)})
	resp, err := http.Get(srv.URL + "/month/2024-13")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}

	srv = testServer(t, &mockLedger{})
	resp, err = http.Get(srv.URL + "/month/2024-01")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestCategory(t *testing.T) {
	l := &mockLedger{cat: rag.CategoryResult{Category: "utilities"}}
	srv := testServer(t, l)
	resp, err := http.Get(srv.URL + "/category/utilities?month_year=2024-01")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if l.category != "utilities" || l.catMonth != "2024-01" {
		t.Errorf("forwarded %q/%q", l.category, l.catMonth)
	}
}

func TestMetricsAndUnknownRoute(t *testing.T) {
	srv := testServer(t, &mockLedger{health: rag.Health{Status: rag.StatusHealthy}})
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "GET /health") {
		t.Errorf("metrics missing route label: %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestEndToEnd_OfflineStack(t *testing.T) {
	t.Setenv("STORE_ENGINE", "bleve")
	t.Setenv("COMPLETION_PROVIDER", "none")
	t.Setenv("ANTHROPIC_API_KEY", "")
	cfg, err := config.FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	stack, err := rag.NewStack(cfg, discard, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer stack.Close()

	srv := testServer(t, stack.Service)
	resp := postQuery(t, srv, `{"question":"What were the expenses in January 2024?"}`)
	var got rag.Response
	decode(t, resp, &got)
	if resp.StatusCode != http.StatusOK || !got.Success {
		t.Fatalf("status %d, response %+v", resp.StatusCode, got)
	}
	if got.ConversationID == "" {
		t.Error("conversation id not assigned")
	}
}

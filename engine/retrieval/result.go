package retrieval

import (
	"fmt"

	"github.com/WessleyAI/condo-ledger/engine/domain"
	"github.com/WessleyAI/condo-ledger/engine/semantic"
)

// Strategy names the routing rule that produced a result.
type Strategy string

const (
	StrategyMonth     Strategy = "month"
	StrategyPersonnel Strategy = "personnel"
	StrategyVendor    Strategy = "vendor"
	StrategyCategory  Strategy = "category"
	StrategySummary   Strategy = "summary"
	StrategyGeneric   Strategy = "generic"
	StrategyDirect    Strategy = "direct"
)

// MissKind classifies a structured negative result.
type MissKind string

const (
	MonthNotFound        MissKind = "MonthNotFound"
	CategoryNotFound     MissKind = "CategoryNotFound"
	NoRelevantMatch      MissKind = "NoRelevantMatch"
	RetrievalUnavailable MissKind = "RetrievalUnavailable"
)

// Miss explains why a question could not be answered and what could be asked instead.
type Miss struct {
	Kind                MissKind           `json:"kind"`
	Error               string             `json:"error"`
	Suggestions         []string           `json:"suggestions"`
	ReformulatedQueries []string           `json:"reformulated_queries"`
	Known               semantic.Inventory `json:"known"`
}

// Err returns the miss as an error matching domain.ErrRoutingMiss, or
// domain.ErrStoreUnavailable when retrieval itself failed.
func (m *Miss) Err() error {
	if m.Kind == RetrievalUnavailable {
		return fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, m.Error)
	}
	return fmt.Errorf("%w: %s: %s", domain.ErrRoutingMiss, m.Kind, m.Error)
}

// QueryResult is the ranked outcome of one retrieval. Results are ordered by
// rank; on a miss they are empty and Miss is set.
type QueryResult struct {
	Query        string            `json:"query"`
	TotalResults int               `json:"total_results"`
	Results      []semantic.Hit    `json:"results"`
	Strategy     Strategy          `json:"strategy"`
	Filter       map[string]string `json:"filter,omitempty"`
	Miss         *Miss             `json:"miss,omitempty"`
}

// IsMiss reports whether the router returned a structured negative result.
func (r QueryResult) IsMiss() bool { return r.Miss != nil }

func hitResult(query string, s Strategy, filter map[string]string, hits []semantic.Hit) QueryResult {
	if hits == nil {
		hits = []semantic.Hit{}
	}
	return QueryResult{Query: query, TotalResults: len(hits), Results: hits, Strategy: s, Filter: filter}
}

func missResult(query string, s Strategy, m *Miss) QueryResult {
	if m.Suggestions == nil {
		m.Suggestions = []string{}
	}
	if m.ReformulatedQueries == nil {
		m.ReformulatedQueries = []string{}
	}
	return QueryResult{Query: query, Results: []semantic.Hit{}, Strategy: s, Miss: m}
}

package retrieval

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/WessleyAI/condo-ledger/engine/domain"
	"github.com/WessleyAI/condo-ledger/pkg/fn"
)

// GenericPrompts are offered when nothing in the index can anchor a suggestion.
var GenericPrompts = []string{
	"What are the highest expenses this month?",
	"Show me all utility costs",
	"What maintenance expenses do we have?",
}

const maxSuggestions = 3

// TotalSpentIn is the canonical month reformulation.
func TotalSpentIn(monthKey string) string {
	return fmt.Sprintf("What was the total spent in %s?", domain.DisplayMonth(monthKey))
}

func monthMiss(q *query) *Miss {
	target := q.month.month
	m := &Miss{Kind: MonthNotFound, Known: q.inv}

	if len(q.inv.Months) == 0 {
		m.Error = fmt.Sprintf("No expense data for %s. No months have been indexed yet.", target.Display())
		m.Suggestions = slices.Clone(GenericPrompts)
		return m
	}

	m.Error = fmt.Sprintf("No expense data for %s. Available months: %s.",
		target.Display(), displayMonths(q.inv.Months))
	for _, key := range domain.NearestMonths(target, q.inv.Months, 2) {
		m.Suggestions = append(m.Suggestions, strings.Replace(q.text, q.month.phrase, domain.DisplayMonth(key), 1))
		m.ReformulatedQueries = append(m.ReformulatedQueries, TotalSpentIn(key))
	}
	return m
}

func personnelMiss(q *query) *Miss {
	m := &Miss{Kind: CategoryNotFound, Known: q.inv}
	if len(q.inv.Categories) == 0 {
		m.Error = "No personnel or payroll expenses were found, and no categories have been indexed yet."
		m.Suggestions = slices.Clone(GenericPrompts)
		return m
	}

	m.Error = fmt.Sprintf("No personnel or payroll expenses were found. Available categories: %s.",
		labels(q.inv.Categories))

outer:
	for _, term := range q.personnel {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\w*`)
		for _, c := range q.inv.Categories {
			if len(m.Suggestions) == maxSuggestions {
				break outer
			}
			s := re.ReplaceAllLiteralString(q.text, strings.ToLower(domain.TitleLabel(c)))
			if !slices.Contains(m.Suggestions, s) {
				m.Suggestions = append(m.Suggestions, s)
			}
		}
	}
	if latest := domain.LatestMonth(q.inv.Months); latest != "" {
		for _, c := range fn.Take(q.inv.Categories, maxSuggestions) {
			m.ReformulatedQueries = append(m.ReformulatedQueries, categoryIn(c, latest))
		}
	}
	return m
}

func genericMiss(q *query) *Miss {
	m := &Miss{Kind: NoRelevantMatch, Known: q.inv}
	if q.inv.Empty() {
		m.Error = "No relevant expenses were found. The expense index is empty."
		m.Suggestions = slices.Clone(GenericPrompts)
		return m
	}

	m.Error = fmt.Sprintf("No relevant expenses were found for your question. Available categories: %s. Available months: %s.",
		labels(q.inv.Categories), displayMonths(q.inv.Months))

	latest := domain.LatestMonth(q.inv.Months)
	switch {
	case latest != "" && len(q.inv.Categories) > 0:
		m.Suggestions = []string{categoryIn(q.inv.Categories[0], latest), TotalSpentIn(latest)}
	case latest != "":
		m.Suggestions = []string{TotalSpentIn(latest)}
	default:
		m.Suggestions = slices.Clone(GenericPrompts)
	}

	months := slices.Clone(q.inv.Months)
	slices.Reverse(months)
outer:
	for _, month := range months {
		for _, c := range q.inv.Categories {
			if len(m.ReformulatedQueries) == maxSuggestions {
				break outer
			}
			m.ReformulatedQueries = append(m.ReformulatedQueries, categoryIn(c, month))
		}
	}
	return m
}

func unavailable(question string, s Strategy) QueryResult {
	return missResult(question, s, &Miss{
		Kind:        RetrievalUnavailable,
		Error:       "The expense index is temporarily unavailable. Please try again shortly.",
		Suggestions: slices.Clone(GenericPrompts),
	})
}

func categoryIn(category, monthKey string) string {
	return fmt.Sprintf("How much was spent on %s in %s?",
		strings.ToLower(domain.TitleLabel(category)), domain.DisplayMonth(monthKey))
}

func displayMonths(keys []string) string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = domain.DisplayMonth(k)
	}
	return strings.Join(out, ", ")
}

func labels(categories []string) string {
	out := make([]string, len(categories))
	for i, c := range categories {
		out[i] = domain.TitleLabel(c)
	}
	return strings.Join(out, ", ")
}

package answer

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/WessleyAI/condo-ledger/engine/chunk"
	"github.com/WessleyAI/condo-ledger/engine/domain"
	"github.com/WessleyAI/condo-ledger/engine/retrieval"
	"github.com/WessleyAI/condo-ledger/engine/semantic"
	"github.com/WessleyAI/condo-ledger/pkg/fn"
	"github.com/WessleyAI/condo-ledger/pkg/money"
)

// HighValueThreshold splits the value-range breakdown, in major units.
const HighValueThreshold = 500

const noResults = "I couldn't find any expenses matching your question in the trial balance data."

// inlineCount is how many items are shown before the fold.
func inlineCount(n int) int {
	switch {
	case n <= 3:
		return n
	case n <= 6:
		return 3
	default:
		return 4
	}
}

// FormatLocal renders res as markdown without any external call. Items are
// ordered by amount; the top few are inline and the rest sit in a collapsible
// block with category and value-range breakdowns. The output depends only on res.
func FormatLocal(res retrieval.QueryResult) string {
	if res.Miss != nil {
		return FormatMiss(res.Miss)
	}
	if len(res.Results) == 0 {
		return noResults
	}
	its := byAmountDesc(items(res.Results))
	if len(its) == 0 {
		return formatSummaries(res.Results)
	}

	an := Summarize(res.Results)
	var b strings.Builder
	fmt.Fprintf(&b, "**Total: %s** across %d %s\n\n", an.TotalAmount.Format(), len(its), plural(len(its), "expense"))

	n := inlineCount(len(its))
	for i, it := range its[:n] {
		writeItem(&b, i+1, it)
	}
	if rest := its[n:]; len(rest) > 0 {
		fmt.Fprintf(&b, "\n<details>\n<summary>Show all %d items</summary>\n\n", len(its))
		for i, it := range rest {
			writeItem(&b, n+i+1, it)
		}
		b.WriteString("\n**By category**\n\n")
		writeCategories(&b, its)
		b.WriteString("\n**By value**\n\n")
		writeRanges(&b, its)
		b.WriteString("\n</details>\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatMiss renders the error, numbered suggestions, and bulleted reformulations.
func FormatMiss(m *retrieval.Miss) string {
	var b strings.Builder
	b.WriteString(m.Error)
	if len(m.Suggestions) > 0 {
		b.WriteString("\n\nYou could ask:\n")
		for i, s := range m.Suggestions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
	}
	if len(m.ReformulatedQueries) > 0 {
		b.WriteString("\nTry asking:\n")
		for _, s := range m.ReformulatedQueries {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeItem(b *strings.Builder, n int, it item) {
	fmt.Fprintf(b, "%d. **%s** %s", n, it.amount.Format(), it.description)
	var parts []string
	if it.vendor != "" {
		parts = append(parts, it.vendor)
	}
	if it.month != "" {
		parts = append(parts, domain.DisplayMonth(it.month))
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteString("\n")
}

func writeCategories(b *strings.Builder, its []item) {
	groups := fn.GroupBy(its, func(it item) string { return cmp.Or(it.category, domain.CategoryOther) })
	type row struct {
		name  string
		total money.Amount
		count int
	}
	var rows []row
	for name, g := range groups {
		rows = append(rows, row{name, sumItems(g), len(g)})
	}
	slices.SortFunc(rows, func(a, b row) int {
		if c := b.total.Cmp(a.total); c != 0 {
			return c
		}
		return strings.Compare(a.name, b.name)
	})
	for _, r := range rows {
		fmt.Fprintf(b, "- %s: %s (%d %s)\n", domain.TitleLabel(r.name), r.total.Format(), r.count, plural(r.count, "item"))
	}
}

func writeRanges(b *strings.Builder, its []item) {
	high := fn.Filter(its, func(it item) bool { return it.amount.GreaterThan(HighValueThreshold) })
	low := fn.Filter(its, func(it item) bool { return !it.amount.GreaterThan(HighValueThreshold) })
	limit := money.New(HighValueThreshold*100, ledgerCurrency(its)).Format()
	fmt.Fprintf(b, "- High (over %s): %d %s, %s\n", limit, len(high), plural(len(high), "item"), sumItems(high).Format())
	fmt.Fprintf(b, "- Low (up to %s): %d %s, %s\n", limit, len(low), plural(len(low), "item"), sumItems(low).Format())
}

// formatSummaries renders results that carry no itemized amounts. The top
// summary's total, when present, is the headline.
func formatSummaries(hits []semantic.Hit) string {
	var b strings.Builder
	top := hits[0].Metadata
	if f, ok := top.Float(chunk.KeyTotalAmount); ok {
		cur := cmp.Or(top.String(chunk.KeyCurrency), money.DefaultCurrency)
		fmt.Fprintf(&b, "**Total: %s**\n\n", money.FromFloat(f, cur).Format())
	}
	for i, h := range fn.Take(hits, 3) {
		fmt.Fprintf(&b, "%d. %s\n", i+1, truncate(h.Content, 300))
	}
	if len(hits) > 3 {
		fmt.Fprintf(&b, "\n...and %d more results.\n", len(hits)-3)
	}
	return strings.TrimRight(b.String(), "\n")
}

func sumItems(its []item) money.Amount {
	cur := ledgerCurrency(its)
	total := money.Zero(cur)
	for _, it := range its {
		if t, err := total.Add(it.amount); err == nil {
			total = t
		}
	}
	return total
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

package answer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WessleyAI/condo-ledger/engine/chunk"
	"github.com/WessleyAI/condo-ledger/engine/retrieval"
	"github.com/WessleyAI/condo-ledger/engine/semantic"
	"github.com/WessleyAI/condo-ledger/pkg/money"
)

func expenseHit(id string, amount float64, category, vendor, month string) semantic.Hit {
	md := chunk.Metadata{
		chunk.KeyChunkID:     id,
		chunk.KeyChunkType:   string(chunk.KindExpense),
		chunk.KeyAmount:      amount,
		chunk.KeyCurrency:    "BRL",
		chunk.KeyDescription: "Expense " + id,
		chunk.KeyCategory:    category,
		chunk.KeyMonthYear:   month,
	}
	if vendor != "" {
		md[chunk.KeyVendor] = vendor
	}
	return semantic.Hit{ChunkID: id, Content: "Expense: " + id, Kind: chunk.KindExpense, Metadata: md, Score: 0.9}
}

func electricity() retrieval.QueryResult {
	hits := []semantic.Hit{
		expenseHit("expense_3", 150, "utilities", "CEMIG", "2025-03"),
		expenseHit("expense_1", 400, "utilities", "CEMIG", "2025-03"),
		expenseHit("expense_5", 80, "utilities", "CEMIG", "2025-02"),
		expenseHit("expense_2", 250, "utilities", "CEMIG", "2025-02"),
		expenseHit("expense_4", 120, "utilities", "", "2025-01"),
	}
	return retrieval.QueryResult{Query: "electricity expenses", TotalResults: len(hits), Results: hits, Strategy: retrieval.StrategyCategory}
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSummarize_Electricity(t *testing.T) {
	a := Summarize(electricity().Results)

	assert.Equal(t, "R$ 1,000.00", a.TotalAmount.Format())
	assert.Equal(t, 5, a.TotalItems)
	require.Contains(t, a.ByCategory, "utilities")
	assert.Equal(t, 0, a.ByCategory["utilities"].Total.Cmp(a.TotalAmount))
	assert.Equal(t, 5, a.ByCategory["utilities"].Count)

	var months []money.Amount
	for _, b := range a.ByMonth {
		months = append(months, b.Total)
	}
	sum, err := money.Sum(money.BRL, months...)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Cmp(a.TotalAmount))
	assert.Equal(t, "R$ 550.00", a.ByMonth["2025-03"].Total.Format())

	assert.Equal(t, 4, a.ByVendor["CEMIG"].Count)
	assert.NotContains(t, a.ByVendor, "")
}

func TestSummarize_SummariesCountOnly(t *testing.T) {
	hits := []semantic.Hit{
		expenseHit("expense_1", 100, "", "", ""),
		{ChunkID: "monthly_summary_2025-03", Metadata: chunk.Metadata{chunk.KeyTotalAmount: 5000.0}},
	}
	a := Summarize(hits)
	assert.Equal(t, 2, a.TotalItems)
	assert.Equal(t, "R$ 100.00", a.TotalAmount.Format())
	assert.Equal(t, 1, a.ByCategory["other"].Count)
	assert.Equal(t, 1, a.ByMonth["unknown"].Count)

	empty := Summarize(nil)
	assert.True(t, empty.TotalAmount.IsZero())
	assert.NotNil(t, empty.ByCategory)
}

func TestInlineCount(t *testing.T) {
	for n, want := range map[int]int{0: 0, 1: 1, 3: 3, 4: 3, 6: 3, 7: 4, 40: 4} {
		assert.Equal(t, want, inlineCount(n), "n=%d", n)
	}
}

func TestFormatLocal_Electricity(t *testing.T) {
	out := FormatLocal(electricity())

	assert.True(t, strings.HasPrefix(out, "**Total: R$ 1,000.00** across 5 expenses"), out)
	assert.Contains(t, out, "1. **R$ 400.00** Expense expense_1 (CEMIG, March 2025)")
	assert.Contains(t, out, "3. **R$ 150.00** Expense expense_3 (CEMIG, March 2025)")
	assert.Contains(t, out, "<summary>Show all 5 items</summary>")
	assert.Contains(t, out, "4. **R$ 120.00** Expense expense_4 (January 2025)")
	assert.Contains(t, out, "- Utilities: R$ 1,000.00 (5 items)")
	assert.Contains(t, out, "- High (over R$ 500.00): 0 items, R$ 0.00")
	assert.Contains(t, out, "- Low (up to R$ 500.00): 5 items, R$ 1,000.00")
	assert.True(t, strings.HasSuffix(out, "</details>"))

	details := strings.Index(out, "<details>")
	assert.Greater(t, details, strings.Index(out, "3. **R$ 150.00**"))
	assert.Less(t, details, strings.Index(out, "4. **R$ 120.00**"))
}

func TestFormatLocal_Idempotent(t *testing.T) {
	res := electricity()
	first := FormatLocal(res)
	assert.Equal(t, first, FormatLocal(res))

	reversed := res
	reversed.Results = slices.Clone(res.Results)
	slices.Reverse(reversed.Results)
	assert.Equal(t, first, FormatLocal(reversed), "rendering must not depend on rank order")
}

func TestFormatLocal_Sizes(t *testing.T) {
	build := func(n int) retrieval.QueryResult {
		var hits []semantic.Hit
		for i := range n {
			cat := "utilities"
			if i%2 == 1 {
				cat = "maintenance"
			}
			hits = append(hits, expenseHit(fmt.Sprintf("expense_%d", i), float64(100*(i+1)), cat, "", "2025-03"))
		}
		return retrieval.QueryResult{Results: hits, TotalResults: n}
	}

	small := FormatLocal(build(3))
	assert.NotContains(t, small, "<details>")
	assert.Contains(t, small, "3. **R$ 100.00**")

	large := FormatLocal(build(7))
	head, _, found := strings.Cut(large, "<details>")
	require.True(t, found)
	assert.Contains(t, head, "4. **R$ 400.00**")
	assert.NotContains(t, head, "5. ")
	assert.Contains(t, large, "<summary>Show all 7 items</summary>")
	assert.Contains(t, large, "- Utilities: R$ 1,600.00 (4 items)")
	assert.Contains(t, large, "- Maintenance: R$ 1,200.00 (3 items)")
	assert.Contains(t, large, "- High (over R$ 500.00): 2 items, R$ 1,300.00")
	assert.Contains(t, large, "- Low (up to R$ 500.00): 5 items, R$ 1,500.00")
}

func TestFormatLocal_SummariesAndEmpty(t *testing.T) {
	res := retrieval.QueryResult{Results: []semantic.Hit{
		{ChunkID: "monthly_summary_2025-03", Content: "Monthly Summary for March 2025", Metadata: chunk.Metadata{chunk.KeyTotalAmount: 2000.0}},
		{ChunkID: "category_summary_2025-03_utilities", Content: "Category: Utilities"},
	}}
	out := FormatLocal(res)
	assert.True(t, strings.HasPrefix(out, "**Total: R$ 2,000.00**"), out)
	assert.Contains(t, out, "2. Category: Utilities")

	assert.Equal(t, noResults, FormatLocal(retrieval.QueryResult{}))
}

func TestFormatMiss(t *testing.T) {
	out := FormatMiss(&retrieval.Miss{
		Error:               "No expense data for March 2025. Available months: December 2024.",
		Suggestions:         []string{"What were the expenses in December 2024?"},
		ReformulatedQueries: []string{"What was the total spent in December 2024?"},
	})
	assert.Equal(t, "No expense data for March 2025. Available months: December 2024.\n\n"+
		"You could ask:\n1. What were the expenses in December 2024?\n\n"+
		"Try asking:\n- What was the total spent in December 2024?", out)

	assert.Equal(t, "nothing", FormatMiss(&retrieval.Miss{Error: "nothing"}))
}

func TestExtractRelevantData(t *testing.T) {
	res := electricity()
	res.Results = append(res.Results, semantic.Hit{
		ChunkID:  "category_summary_2025-03_maintenance",
		Metadata: chunk.Metadata{chunk.KeyCategory: "maintenance", chunk.KeyMonthYear: "2025-04"},
	})
	d := ExtractRelevantData(res.Results)

	assert.Len(t, d.Amounts, 5)
	assert.Equal(t, "Expense expense_3", d.Amounts[0].Description)
	assert.Equal(t, "CEMIG", d.Amounts[0].Vendor)
	assert.Equal(t, []string{"CEMIG"}, d.Vendors)
	assert.Equal(t, []string{"utilities", "maintenance"}, d.Categories)
	assert.Equal(t, []string{"2025-03", "2025-02", "2025-01", "2025-04"}, d.Months)

	empty := ExtractRelevantData(nil)
	assert.NotNil(t, empty.Amounts)
	assert.NotNil(t, empty.Vendors)
}

func TestSuggestFollowUps(t *testing.T) {
	got := SuggestFollowUps(RelevantData{
		Categories: []string{"power_supply", "maintenance", "services"},
		Vendors:    []string{"CEMIG"},
		Months:     []string{"2025-03"},
	})
	assert.Equal(t, []string{
		"What other power supply expenses do we have?",
		"What other maintenance expenses do we have?",
		"Show me all payments to CEMIG",
	}, got)

	got = SuggestFollowUps(RelevantData{Vendors: []string{"A", "B", "C"}, Months: []string{"2025-03"}})
	assert.Equal(t, []string{"Show me all payments to A", "Show me all payments to B", "What was the total spent in March 2025?"}, got)

	assert.Equal(t, retrieval.GenericPrompts, SuggestFollowUps(RelevantData{}))
}

type fakeCompleter struct {
	mu     sync.Mutex
	reply  string
	err    error
	block  bool
	calls  int
	system string
	msgs   []Message
}

func (f *fakeCompleter) Complete(ctx context.Context, system string, msgs []Message) (string, error) {
	f.mu.Lock()
	f.calls++
	f.system, f.msgs = system, msgs
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

func newComposer(c Completer) *Composer {
	return NewComposer(c, nil, Options{Logger: quiet(), Timeout: 20 * time.Millisecond})
}

func TestCompose_MissSkipsCompleter(t *testing.T) {
	fc := &fakeCompleter{reply: "should not be used"}
	miss := &retrieval.Miss{Kind: retrieval.MonthNotFound, Error: "No expense data for March 2025.", Suggestions: []string{"a"}}
	ans := newComposer(fc).Compose(context.Background(), "expenses in March 2025", retrieval.QueryResult{Miss: miss}, nil)

	assert.Equal(t, 0, fc.calls)
	assert.Equal(t, SourceMiss, ans.Source)
	assert.Equal(t, []string{"a"}, ans.Suggestions)
	assert.True(t, strings.HasPrefix(ans.Text, "No expense data for March 2025."))
	assert.Empty(t, ans.RelevantData.Amounts)
}

func TestCompose_Completion(t *testing.T) {
	fc := &fakeCompleter{reply: "R$ 1,000.00 was spent on electricity."}
	history := []Message{
		{RoleUser, "q1"}, {RoleAssistant, "a1"},
		{RoleUser, "q2"}, {RoleAssistant, "a2"},
		{RoleUser, "q3"}, {RoleAssistant, "a3"},
	}
	ans := newComposer(fc).Compose(context.Background(), "electricity expenses", electricity(), history)

	assert.Equal(t, SourceCompletion, ans.Source)
	assert.Equal(t, fc.reply, ans.Text)
	assert.Equal(t, "R$ 1,000.00", ans.Analysis.TotalAmount.Format())
	assert.Contains(t, fc.system, "single monetary figure")

	require.Len(t, fc.msgs, 5)
	assert.Equal(t, "q2", fc.msgs[0].Content)
	last := fc.msgs[4]
	assert.Equal(t, RoleUser, last.Role)
	assert.Contains(t, last.Content, "Result 1 (Score: 0.900):\nContent: Expense: expense_3\nMetadata:\n  - amount: 150\n")
	assert.Contains(t, last.Content, "QUESTION: electricity expenses")
	assert.Len(t, history, 6, "history is not modified")
}

func TestCompose_Fallbacks(t *testing.T) {
	cases := map[string]*fakeCompleter{
		"error":   {err: errors.New("429 rate limited")},
		"timeout": {block: true},
		"empty":   {reply: "   "},
	}
	for name, fc := range cases {
		t.Run(name, func(t *testing.T) {
			ans := newComposer(fc).Compose(context.Background(), "electricity expenses", electricity(), nil)
			assert.Equal(t, 1, fc.calls)
			assert.Equal(t, SourceLocal, ans.Source)
			assert.Equal(t, FormatLocal(electricity()), ans.Text)
		})
	}
}

func TestCompose_DetailAndNoCompleter(t *testing.T) {
	fc := &fakeCompleter{reply: "prose"}
	ans := newComposer(fc).Compose(context.Background(), "Give me a breakdown of electricity", electricity(), nil)
	assert.Equal(t, 0, fc.calls)
	assert.Equal(t, SourceLocal, ans.Source)

	ans = newComposer(nil).Compose(context.Background(), "electricity expenses", electricity(), nil)
	assert.Equal(t, SourceLocal, ans.Source)
	assert.Contains(t, ans.Text, "**Total: R$ 1,000.00**")
	assert.Equal(t, []string{
		"What other utilities expenses do we have?",
		"Show me all payments to CEMIG",
		"What was the total spent in March 2025?",
	}, ans.Suggestions)
}

func TestWantsDetail(t *testing.T) {
	assert.True(t, WantsDetail("Show all utility costs"))
	assert.True(t, WantsDetail("more DETAILS please"))
	assert.True(t, WantsDetail("list all payments"))
	assert.False(t, WantsDetail("how much for water?"))
}

package chunk

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/WessleyAI/condo-ledger/engine/domain"
	"github.com/WessleyAI/condo-ledger/pkg/fn"
	"github.com/WessleyAI/condo-ledger/pkg/money"
)

// Builder holds the aggregation thresholds. The zero value is not useful; use NewBuilder.
type Builder struct {
	// MinGroupSize is the smallest category or vendor group that gets a summary chunk.
	MinGroupSize int
	// MaxVendorsListed caps the vendor names written into a category summary.
	MaxVendorsListed int
	// TopCategories is how many categories a monthly summary names.
	TopCategories int
}

// NewBuilder returns a Builder with the default thresholds.
func NewBuilder() Builder {
	return Builder{MinGroupSize: 2, MaxVendorsListed: 5, TopCategories: 3}
}

// BuildExpense renders one expense record.
func BuildExpense(rec domain.ExpenseRecord) Chunk {
	amt := rec.Amount.Format()
	var parts []string
	if rec.HasVendor() {
		parts = append(parts, fmt.Sprintf("%s - %s paid to %s", rec.Description, amt, rec.Vendor))
	} else {
		parts = append(parts, fmt.Sprintf("%s - %s", rec.Description, amt))
	}

	category := rec.CategoryOrDefault()
	subcategory := rec.SubcategoryOrDefault()
	if category != domain.CategoryOther {
		parts = append(parts, "Category: "+domain.TitleLabel(category))
		if subcategory != domain.SubcategoryMisc {
			parts = append(parts, "Subcategory: "+domain.TitleLabel(subcategory))
		}
	}
	if m, err := domain.ParseMonthYear(rec.MonthYear); err == nil {
		parts = append(parts, "Period: "+m.Display())
	}

	return Chunk{
		ID:       "expense_" + rec.ID,
		Content:  sentence(parts),
		Currency: rec.Amount.Currency(),
		Payload: Expense{
			ExpenseID:   rec.ID,
			Description: rec.Description,
			Amount:      rec.Amount,
			Vendor:      rec.Vendor,
			Category:    category,
			Subcategory: subcategory,
			MonthYear:   rec.MonthYear,
			Document:    rec.Document,
		},
	}
}

// BuildMonthlySummary aggregates every record of one month.
func (b Builder) BuildMonthlySummary(monthYear string, recs []domain.ExpenseRecord) Chunk {
	tot := total(recs)
	byCat := groupTotals(recs, domain.ExpenseRecord.CategoryOrDefault)
	vendors := vendorSet(recs)

	parts := []string{fmt.Sprintf("Monthly summary for %s: %s total expenses across %d items",
		domain.DisplayMonth(monthYear), tot.Format(), len(recs))}

	var top []string
	for i, g := range byCat {
		if i == b.TopCategories {
			break
		}
		top = append(top, fmt.Sprintf("%s: %s", domain.TitleLabel(g.key), g.total.Format()))
	}
	if len(top) > 0 {
		parts = append(parts, "Top categories: "+strings.Join(top, ", "))
	}
	if len(vendors) > 0 {
		parts = append(parts, fmt.Sprintf("Total vendors: %d", len(vendors)))
	}

	return Chunk{
		ID:       "monthly_" + monthYear,
		Content:  sentence(parts),
		Currency: tot.Currency(),
		Payload: MonthlySummary{
			MonthYear:     monthYear,
			Total:         tot,
			ExpenseCount:  len(recs),
			VendorCount:   len(vendors),
			CategoryCount: len(byCat),
		},
	}
}

// BuildCategorySummary aggregates one category within a month. Groups smaller
// than MinGroupSize produce no chunk.
func (b Builder) BuildCategorySummary(category string, recs []domain.ExpenseRecord, monthYear string) (Chunk, bool) {
	if len(recs) < b.MinGroupSize {
		return Chunk{}, false
	}
	tot := total(recs)
	bySub := groupTotals(recs, domain.ExpenseRecord.SubcategoryOrDefault)
	vendors := vendorSet(recs)

	parts := []string{fmt.Sprintf("%s expenses for %s: %s total across %d items",
		domain.TitleLabel(category), domain.DisplayMonth(monthYear), tot.Format(), len(recs))}

	if len(bySub) > 1 {
		details := make([]string, len(bySub))
		for i, g := range bySub {
			details[i] = fmt.Sprintf("%s: %s", domain.TitleLabel(g.key), g.total.Format())
		}
		parts = append(parts, "Breakdown: "+strings.Join(details, ", "))
	}

	if len(vendors) > 0 {
		listed := vendors
		if len(listed) > b.MaxVendorsListed {
			listed = listed[:b.MaxVendorsListed]
			parts = append(parts, fmt.Sprintf("Main vendors: %s and %d others",
				strings.Join(listed, ", "), len(vendors)-len(listed)))
		} else {
			parts = append(parts, "Vendors: "+strings.Join(listed, ", "))
		}
	}

	return Chunk{
		ID:       fmt.Sprintf("category_%s_%s", category, monthYear),
		Content:  sentence(parts),
		Currency: tot.Currency(),
		Payload: CategorySummary{
			Category:         category,
			MonthYear:        monthYear,
			Total:            tot,
			ExpenseCount:     len(recs),
			SubcategoryCount: len(bySub),
			VendorCount:      len(vendors),
		},
	}, true
}

// BuildVendorSummaries emits one chunk per vendor with at least MinGroupSize
// transactions. Records without a vendor are skipped.
func (b Builder) BuildVendorSummaries(recs []domain.ExpenseRecord) []Chunk {
	withVendor := fn.Filter(recs, domain.ExpenseRecord.HasVendor)
	groups := fn.GroupBy(withVendor, func(r domain.ExpenseRecord) string { return r.Vendor })

	var out []Chunk
	for _, vendor := range fn.SortedKeys(groups) {
		vrecs := groups[vendor]
		if len(vrecs) < b.MinGroupSize {
			continue
		}
		tot := total(vrecs)
		months := groupTotals(vrecs, func(r domain.ExpenseRecord) string { return r.MonthYear })
		sort.Slice(months, func(i, j int) bool { return months[i].key < months[j].key })
		categories := fn.Unique(fn.Map(vrecs, domain.ExpenseRecord.CategoryOrDefault))
		sort.Strings(categories)

		parts := []string{fmt.Sprintf("%s: %s total across %d transactions", vendor, tot.Format(), len(vrecs))}
		if len(months) > 1 {
			details := make([]string, len(months))
			for i, g := range months {
				details[i] = fmt.Sprintf("%s: %s", g.key, g.total.Format())
			}
			parts = append(parts, "Monthly breakdown: "+strings.Join(details, ", "))
		}
		if len(categories) > 1 {
			parts = append(parts, "Categories: "+strings.Join(fn.Map(categories, domain.TitleLabel), ", "))
		}

		out = append(out, Chunk{
			ID:       VendorChunkID(vendor),
			Content:  sentence(parts),
			Currency: tot.Currency(),
			Payload: VendorSummary{
				Vendor:           vendor,
				Total:            tot,
				TransactionCount: len(vrecs),
				MonthCount:       len(months),
				CategoryCount:    len(categories),
			},
		})
	}
	return out
}

// VendorChunkID is the summary chunk ID for a vendor. The name is escaped so
// distinct vendor names never share an ID.
func VendorChunkID(vendor string) string {
	return "vendor_" + url.PathEscape(vendor)
}

// BuildAll converts a snapshot of records into the full chunk set: expenses in
// input order, then per month (sorted) the monthly summary and its category
// summaries (sorted), then vendor summaries (sorted).
func (b Builder) BuildAll(recs []domain.ExpenseRecord) []Chunk {
	if len(recs) == 0 {
		return nil
	}
	out := fn.Map(recs, BuildExpense)

	byMonth := fn.GroupBy(recs, func(r domain.ExpenseRecord) string { return r.MonthYear })
	for _, month := range fn.SortedKeys(byMonth) {
		mrecs := byMonth[month]
		out = append(out, b.BuildMonthlySummary(month, mrecs))

		byCat := fn.GroupBy(mrecs, domain.ExpenseRecord.CategoryOrDefault)
		for _, cat := range fn.SortedKeys(byCat) {
			if c, ok := b.BuildCategorySummary(cat, byCat[cat], month); ok {
				out = append(out, c)
			}
		}
	}
	return append(out, b.BuildVendorSummaries(recs)...)
}

func sentence(parts []string) string {
	return strings.Join(parts, ". ") + "."
}

type groupTotal struct {
	key   string
	total money.Amount
	count int
}

// groupTotals sums records by key, sorted by total descending then key.
func groupTotals(recs []domain.ExpenseRecord, key func(domain.ExpenseRecord) string) []groupTotal {
	groups := fn.GroupBy(recs, key)
	out := make([]groupTotal, 0, len(groups))
	for k, g := range groups {
		out = append(out, groupTotal{key: k, total: total(g), count: len(g)})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].total.Cmp(out[j].total); c != 0 {
			return c > 0
		}
		return out[i].key < out[j].key
	})
	return out
}

// total sums amounts in the first record's currency; other currencies are left out.
func total(recs []domain.ExpenseRecord) money.Amount {
	if len(recs) == 0 {
		return money.Zero(money.DefaultCurrency)
	}
	t := money.Zero(recs[0].Amount.Currency())
	for _, r := range recs {
		if s, err := t.Add(r.Amount); err == nil {
			t = s
		}
	}
	return t
}

func vendorSet(recs []domain.ExpenseRecord) []string {
	vendors := fn.Unique(fn.Map(fn.Filter(recs, domain.ExpenseRecord.HasVendor),
		func(r domain.ExpenseRecord) string { return r.Vendor }))
	sort.Strings(vendors)
	return vendors
}

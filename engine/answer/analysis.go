// Package answer turns retrieval results into user-facing answers: grouped
// totals, a progressive-disclosure markdown rendering, optional prose from a
// text-completion backend, and follow-up suggestions.
package answer

import (
	"cmp"
	"slices"
	"strings"

	"github.com/WessleyAI/condo-ledger/engine/chunk"
	"github.com/WessleyAI/condo-ledger/engine/domain"
	"github.com/WessleyAI/condo-ledger/engine/semantic"
	"github.com/WessleyAI/condo-ledger/pkg/fn"
	"github.com/WessleyAI/condo-ledger/pkg/money"
)

// Bucket is a count and total for one group.
type Bucket struct {
	Count int          `json:"count"`
	Total money.Amount `json:"total"`
}

func (b Bucket) add(amt money.Amount) Bucket {
	total, err := b.Total.Add(amt)
	if err != nil {
		return b
	}
	return Bucket{Count: b.Count + 1, Total: total}
}

// Analysis groups the amounts carried by a result set.
type Analysis struct {
	TotalAmount money.Amount      `json:"total_amount"`
	TotalItems  int               `json:"total_items"`
	ByCategory  map[string]Bucket `json:"by_category"`
	ByMonth     map[string]Bucket `json:"by_month"`
	ByVendor    map[string]Bucket `json:"by_vendor"`
}

// item is an itemized expense pulled out of a hit's metadata.
type item struct {
	id          string
	amount      money.Amount
	description string
	vendor      string
	category    string
	month       string
}

func items(hits []semantic.Hit) []item {
	var out []item
	for _, h := range hits {
		amt, ok := h.Metadata.Amount()
		if !ok {
			continue
		}
		desc := h.Metadata.String(chunk.KeyDescription)
		if desc == "" {
			desc = truncate(h.Content, 100)
		}
		out = append(out, item{
			id:          h.ChunkID,
			amount:      amt,
			description: desc,
			vendor:      h.Metadata.String(chunk.KeyVendor),
			category:    h.Metadata.String(chunk.KeyCategory),
			month:       h.Metadata.String(chunk.KeyMonthYear),
		})
	}
	return out
}

// ledgerCurrency is the currency of the first itemized hit, or BRL.
func ledgerCurrency(its []item) string {
	if len(its) == 0 {
		return money.DefaultCurrency
	}
	return its[0].amount.Currency()
}

// Summarize totals every hit carrying an amount. Hits without one (summary
// chunks) only count toward TotalItems. Amounts in a currency other than the
// first itemized hit's are left out of the sums.
func Summarize(hits []semantic.Hit) Analysis {
	its := items(hits)
	cur := ledgerCurrency(its)
	a := Analysis{
		TotalAmount: money.Zero(cur),
		TotalItems:  len(hits),
		ByCategory:  map[string]Bucket{},
		ByMonth:     map[string]Bucket{},
		ByVendor:    map[string]Bucket{},
	}
	zero := Bucket{Total: money.Zero(cur)}
	bump := func(m map[string]Bucket, key string, amt money.Amount) {
		b, ok := m[key]
		if !ok {
			b = zero
		}
		m[key] = b.add(amt)
	}
	for _, it := range its {
		total, err := a.TotalAmount.Add(it.amount)
		if err != nil {
			continue
		}
		a.TotalAmount = total
		bump(a.ByCategory, cmp.Or(it.category, domain.CategoryOther), it.amount)
		bump(a.ByMonth, cmp.Or(it.month, "unknown"), it.amount)
		if it.vendor != "" {
			bump(a.ByVendor, it.vendor, it.amount)
		}
	}
	return a
}

// AmountItem is one itemized expense in RelevantData.
type AmountItem struct {
	Amount      money.Amount `json:"amount"`
	Description string       `json:"description"`
	Vendor      string       `json:"vendor"`
	Category    string       `json:"category"`
}

// RelevantData is the machine-usable digest of a result set. Lists keep the
// order in which values first appear in the ranking.
type RelevantData struct {
	Amounts    []AmountItem `json:"amounts"`
	Vendors    []string     `json:"vendors"`
	Categories []string     `json:"categories"`
	Months     []string     `json:"months"`
}

// ExtractRelevantData collects itemized amounts and the distinct vendors,
// categories, and months present in hits.
func ExtractRelevantData(hits []semantic.Hit) RelevantData {
	d := RelevantData{
		Amounts: fn.Map(items(hits), func(it item) AmountItem {
			return AmountItem{Amount: it.amount, Description: it.description, Vendor: it.vendor, Category: it.category}
		}),
	}
	var vendors, categories, months []string
	for _, h := range hits {
		if v := h.Metadata.String(chunk.KeyVendor); v != "" {
			vendors = append(vendors, v)
		}
		if c := h.Metadata.String(chunk.KeyCategory); c != "" {
			categories = append(categories, c)
		}
		if m := h.Metadata.String(chunk.KeyMonthYear); m != "" {
			months = append(months, m)
		}
	}
	d.Vendors = nonNil(fn.Unique(vendors))
	d.Categories = nonNil(fn.Unique(categories))
	d.Months = nonNil(fn.Unique(months))
	if d.Amounts == nil {
		d.Amounts = []AmountItem{}
	}
	return d
}

// byAmountDesc sorts items by amount, largest first, ties by chunk ID.
func byAmountDesc(its []item) []item {
	out := slices.Clone(its)
	slices.SortStableFunc(out, func(a, b item) int {
		if c := b.amount.Cmp(a.amount); c != 0 {
			return c
		}
		return strings.Compare(a.id, b.id)
	})
	return out
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

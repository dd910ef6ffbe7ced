// Package chunk turns expense records into natural-language chunks with flat
// metadata. A chunk's payload is a closed set of variants, one per chunk kind,
// each carrying its own typed fields; the flat map is derived at the store
// boundary.
package chunk

import (
	"github.com/WessleyAI/condo-ledger/pkg/money"
)

// Kind identifies the chunk variant. Values are the persisted chunk_type strings.
type Kind string

const (
	KindExpense  Kind = "individual_expense"
	KindMonthly  Kind = "monthly_summary"
	KindCategory Kind = "category_summary"
	KindVendor   Kind = "vendor_summary"
)

// Kinds lists every chunk kind in a stable order.
var Kinds = []Kind{KindExpense, KindMonthly, KindCategory, KindVendor}

// ParseKind maps a persisted chunk_type back to a Kind.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Payload is implemented only by the four variants in this package.
type Payload interface {
	Kind() Kind
	flatten(md Metadata)
}

// Chunk is a unit of text plus typed payload, ready for embedding.
type Chunk struct {
	ID       string
	Content  string
	Currency string
	Payload  Payload
}

// Kind returns the payload's kind.
func (c Chunk) Kind() Kind { return c.Payload.Kind() }

// Metadata flattens the payload to scalar values for the semantic store.
func (c Chunk) Metadata() Metadata {
	md := Metadata{
		KeyChunkID:   c.ID,
		KeyChunkType: string(c.Kind()),
		KeyCurrency:  currencyOr(c.Currency),
	}
	c.Payload.flatten(md)
	return md
}

func currencyOr(c string) string {
	if c == "" {
		return money.DefaultCurrency
	}
	return c
}

// Expense is the payload of an individual expense chunk.
type Expense struct {
	ExpenseID   string
	Description string
	Amount      money.Amount
	Vendor      string
	Category    string
	Subcategory string
	MonthYear   string
	Document    string
}

func (Expense) Kind() Kind { return KindExpense }

func (p Expense) flatten(md Metadata) {
	md[KeyExpenseID] = p.ExpenseID
	md[KeyDescription] = truncateRunes(p.Description, maxDescriptionRunes)
	md[KeyAmount] = p.Amount.Float64()
	md[KeyVendor] = p.Vendor
	md[KeyCategory] = p.Category
	md[KeySubcategory] = p.Subcategory
	md[KeyMonthYear] = p.MonthYear
	md[KeyDocument] = p.Document
}

// MonthlySummary aggregates one month.
type MonthlySummary struct {
	MonthYear     string
	Total         money.Amount
	ExpenseCount  int
	VendorCount   int
	CategoryCount int
}

func (MonthlySummary) Kind() Kind { return KindMonthly }

func (p MonthlySummary) flatten(md Metadata) {
	md[KeyMonthYear] = p.MonthYear
	md[KeyTotalAmount] = p.Total.Float64()
	md[KeyExpenseCount] = p.ExpenseCount
	md[KeyVendorCount] = p.VendorCount
	md[KeyCategoryCount] = p.CategoryCount
}

// CategorySummary aggregates one category within one month.
type CategorySummary struct {
	Category         string
	MonthYear        string
	Total            money.Amount
	ExpenseCount     int
	SubcategoryCount int
	VendorCount      int
}

func (CategorySummary) Kind() Kind { return KindCategory }

func (p CategorySummary) flatten(md Metadata) {
	md[KeyCategory] = p.Category
	md[KeyMonthYear] = p.MonthYear
	md[KeyTotalAmount] = p.Total.Float64()
	md[KeyExpenseCount] = p.ExpenseCount
	md[KeySubcategoryCount] = p.SubcategoryCount
	md[KeyVendorCount] = p.VendorCount
}

// VendorSummary aggregates every transaction with one vendor.
type VendorSummary struct {
	Vendor           string
	Total            money.Amount
	TransactionCount int
	MonthCount       int
	CategoryCount    int
}

func (VendorSummary) Kind() Kind { return KindVendor }

func (p VendorSummary) flatten(md Metadata) {
	md[KeyVendor] = p.Vendor
	md[KeyTotalAmount] = p.Total.Float64()
	md[KeyTransactionCount] = p.TransactionCount
	md[KeyMonthCount] = p.MonthCount
	md[KeyCategoryCount] = p.CategoryCount
}

const maxDescriptionRunes = 500

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

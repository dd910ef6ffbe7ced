// Package domain defines the ledger's core types, the error taxonomy, and
// validation. It is the validation gate at pipeline and API entry points.
package domain

import (
	"strings"
	"unicode"

	"github.com/WessleyAI/condo-ledger/pkg/money"
)

// Default category labels for lines the categorizer cannot place.
const (
	CategoryOther         = "other"
	SubcategoryMisc       = "miscellaneous"
	DefaultConversationID = "default"
)

// ExpenseRecord is one expense line extracted from a trial balance.
// Records are immutable after extraction; corrections need a new extraction pass.
type ExpenseRecord struct {
	ID          string       `json:"id"`
	Description string       `json:"description"`
	Amount      money.Amount `json:"-"`
	Vendor      string       `json:"vendor,omitempty"`
	Category    string       `json:"category"`
	Subcategory string       `json:"subcategory"`
	MonthYear   string       `json:"month_year"`
	Currency    string       `json:"currency"`
	Document    string       `json:"document,omitempty"`
}

// HasVendor reports whether the record names a vendor.
func (e ExpenseRecord) HasVendor() bool { return strings.TrimSpace(e.Vendor) != "" }

// CategoryOrDefault returns the category, falling back to "other".
func (e ExpenseRecord) CategoryOrDefault() string {
	if e.Category == "" {
		return CategoryOther
	}
	return e.Category
}

// SubcategoryOrDefault returns the subcategory, falling back to "miscellaneous".
func (e ExpenseRecord) SubcategoryOrDefault() string {
	if e.Subcategory == "" {
		return SubcategoryMisc
	}
	return e.Subcategory
}

// TitleLabel turns "power_supply" into "Power Supply".
func TitleLabel(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		r := []rune(strings.ToLower(w))
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

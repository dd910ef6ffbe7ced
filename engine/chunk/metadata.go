package chunk

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/WessleyAI/condo-ledger/pkg/money"
)

// Metadata keys shared by the chunk builder, the stores, and the router filters.
const (
	KeyChunkID          = "chunk_id"
	KeyChunkType        = "chunk_type"
	KeyCurrency         = "currency"
	KeyExpenseID        = "expense_id"
	KeyDescription      = "description"
	KeyAmount           = "amount"
	KeyVendor           = "vendor"
	KeyCategory         = "category"
	KeySubcategory      = "subcategory"
	KeyMonthYear        = "month_year"
	KeyDocument         = "document"
	KeyTotalAmount      = "total_amount"
	KeyExpenseCount     = "expense_count"
	KeyVendorCount      = "vendor_count"
	KeyCategoryCount    = "category_count"
	KeySubcategoryCount = "subcategory_count"
	KeyTransactionCount = "transaction_count"
	KeyMonthCount       = "month_count"
)

// ErrNestedMetadata is returned by CheckFlat for non-scalar values.
var ErrNestedMetadata = errors.New("chunk: metadata value is not a flat scalar")

// Metadata is a flat map of scalar values: string, bool, integers, or floats.
type Metadata map[string]any

// CheckFlat rejects nested or non-scalar values. Stores call it before insertion.
func CheckFlat(md Metadata) error {
	for k, v := range md {
		switch tv := v.(type) {
		case string, bool, int, int32, int64, float32:
		case float64:
			if math.IsNaN(tv) || math.IsInf(tv, 0) {
				return fmt.Errorf("%w: %s is not finite", ErrNestedMetadata, k)
			}
		default:
			return fmt.Errorf("%w: %s has type %T", ErrNestedMetadata, k, v)
		}
	}
	return nil
}

// String returns a string value, or "" if absent.
func (m Metadata) String(key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Float returns a numeric value as float64.
func (m Metadata) Float(key string) (float64, bool) {
	switch v := m[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

// Int returns a numeric value truncated to int.
func (m Metadata) Int(key string) (int, bool) {
	f, ok := m.Float(key)
	return int(f), ok
}

// Amount returns the expense amount, present only on individual expense chunks.
func (m Metadata) Amount() (money.Amount, bool) {
	f, ok := m.Float(KeyAmount)
	if !ok {
		return money.Amount{}, false
	}
	return money.FromFloat(f, currencyOr(m.String(KeyCurrency))), true
}

// Kind returns the chunk kind recorded in the metadata.
func (m Metadata) Kind() Kind {
	k, _ := ParseKind(m.String(KeyChunkType))
	return k
}

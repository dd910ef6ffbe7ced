package chunk

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WessleyAI/condo-ledger/engine/domain"
	"github.com/WessleyAI/condo-ledger/pkg/money"
)

func rec(id, desc string, cents int64, vendor, cat, sub, month string) domain.ExpenseRecord {
	return domain.ExpenseRecord{
		ID: id, Description: desc, Amount: money.New(cents, money.BRL), Vendor: vendor,
		Category: cat, Subcategory: sub, MonthYear: month, Currency: money.BRL, Document: "2403.pdf",
	}
}

func TestBuildExpense(t *testing.T) {
	c := BuildExpense(rec("2403_1", "Energia elétrica", 123456, "CEMIG", "utilities", "power_supply", "2024-03"))

	assert.Equal(t, "expense_2403_1", c.ID)
	assert.Equal(t, KindExpense, c.Kind())
	assert.Equal(t,
		"Energia elétrica - R$ 1,234.56 paid to CEMIG. Category: Utilities. Subcategory: Power Supply. Period: March 2024.",
		c.Content)

	md := c.Metadata()
	require.NoError(t, CheckFlat(md))
	assert.Equal(t, "individual_expense", md[KeyChunkType])
	assert.Equal(t, 1234.56, md[KeyAmount])
	assert.Equal(t, "utilities", md[KeyCategory])
	assert.Equal(t, "2024-03", md[KeyMonthYear])
	assert.Equal(t, "BRL", md[KeyCurrency])
}

func TestBuildExpense_OptionalClauses(t *testing.T) {
	c := BuildExpense(rec("x_1", "Tarifa bancária", 1500, "", "other", "miscellaneous", "2024-01"))
	assert.Equal(t, "Tarifa bancária - R$ 15.00. Period: January 2024.", c.Content)

	c = BuildExpense(rec("x_2", "Limpeza geral", 1500, "", "maintenance", "miscellaneous", "bad"))
	assert.Equal(t, "Limpeza geral - R$ 15.00. Category: Maintenance.", c.Content)
}

func TestBuildMonthlySummary(t *testing.T) {
	recs := []domain.ExpenseRecord{
		rec("1", "Energia", 50000, "CEMIG", "utilities", "power_supply", "2024-03"),
		rec("2", "Água", 30000, "COPASA", "utilities", "water", "2024-03"),
		rec("3", "Elevador", 60000, "Atlas", "maintenance", "elevator", "2024-03"),
		rec("4", "Portaria", 40000, "", "services", "security", "2024-03"),
		rec("5", "Papel", 1000, "Kalunga", "supplies", "office", "2024-03"),
	}
	c := NewBuilder().BuildMonthlySummary("2024-03", recs)

	assert.Equal(t, "monthly_2024-03", c.ID)
	assert.Equal(t,
		"Monthly summary for March 2024: R$ 1,810.00 total expenses across 5 items. "+
			"Top categories: Utilities: R$ 800.00, Maintenance: R$ 600.00, Services: R$ 400.00. Total vendors: 4.",
		c.Content)

	md := c.Metadata()
	assert.Equal(t, 1810.0, md[KeyTotalAmount])
	assert.Equal(t, 5, md[KeyExpenseCount])
	assert.Equal(t, 4, md[KeyVendorCount])
	assert.Equal(t, 4, md[KeyCategoryCount])
}

func TestBuildCategorySummary_GroupSize(t *testing.T) {
	b := NewBuilder()
	for g := 0; g <= 4; g++ {
		var recs []domain.ExpenseRecord
		for i := 0; i < g; i++ {
			recs = append(recs, rec(fmt.Sprint(i), "Manutenção", 10000, "", "maintenance", "repairs", "2024-02"))
		}
		_, ok := b.BuildCategorySummary("maintenance", recs, "2024-02")
		assert.Equal(t, g >= 2, ok, "group size %d", g)
	}
}

func TestBuildCategorySummary_Content(t *testing.T) {
	recs := []domain.ExpenseRecord{
		rec("1", "Energia", 50000, "CEMIG", "utilities", "power_supply", "2024-03"),
		rec("2", "Água", 30000, "COPASA", "utilities", "water", "2024-03"),
	}
	c, ok := NewBuilder().BuildCategorySummary("utilities", recs, "2024-03")
	require.True(t, ok)
	assert.Equal(t, "category_utilities_2024-03", c.ID)
	assert.Equal(t,
		"Utilities expenses for March 2024: R$ 800.00 total across 2 items. "+
			"Breakdown: Power Supply: R$ 500.00, Water: R$ 300.00. Vendors: CEMIG, COPASA.",
		c.Content)
	assert.Equal(t, 2, c.Metadata()[KeySubcategoryCount])
}

func TestBuildCategorySummary_VendorTruncation(t *testing.T) {
	var recs []domain.ExpenseRecord
	for i := 0; i < 7; i++ {
		recs = append(recs, rec(fmt.Sprint(i), "Serviço", 1000, fmt.Sprintf("Vendor %d", i), "services", "security", "2024-05"))
	}
	c, ok := NewBuilder().BuildCategorySummary("services", recs, "2024-05")
	require.True(t, ok)
	assert.Contains(t, c.Content, "Main vendors: Vendor 0, Vendor 1, Vendor 2, Vendor 3, Vendor 4 and 2 others.")
	assert.NotContains(t, c.Content, "Breakdown")
}

func TestVendorChunkID_Distinct(t *testing.T) {
	assert.NotEqual(t, VendorChunkID("ACME Ltda"), VendorChunkID("ACME_Ltda"))
	assert.NotEqual(t, VendorChunkID("ACME  Ltda"), VendorChunkID("ACME Ltda"))
	assert.Equal(t, "vendor_CEMIG", VendorChunkID("CEMIG"))

	recs := []domain.ExpenseRecord{
		rec("1", "Serviço jan", 10000, "ACME Ltda", "services", "administration", "2024-01"),
		rec("2", "Serviço fev", 10000, "ACME Ltda", "services", "administration", "2024-02"),
		rec("3", "Serviço jan", 20000, "ACME_Ltda", "services", "administration", "2024-01"),
		rec("4", "Serviço fev", 20000, "ACME_Ltda", "services", "administration", "2024-02"),
	}
	chunks := NewBuilder().BuildVendorSummaries(recs)
	require.Len(t, chunks, 2)
	assert.NotEqual(t, chunks[0].ID, chunks[1].ID)
}

func TestBuildVendorSummaries(t *testing.T) {
	recs := []domain.ExpenseRecord{
		rec("1", "Energia jan", 50000, "CEMIG", "utilities", "power_supply", "2024-01"),
		rec("2", "Energia fev", 55000, "CEMIG", "utilities", "power_supply", "2024-02"),
		rec("3", "Reparo", 20000, "CEMIG", "maintenance", "repairs", "2024-02"),
		rec("4", "Água", 30000, "COPASA", "utilities", "water", "2024-01"),
		rec("5", "Sem fornecedor", 1000, "", "other", "miscellaneous", "2024-01"),
		rec("6", "Sem fornecedor 2", 1000, "", "other", "miscellaneous", "2024-01"),
	}
	chunks := NewBuilder().BuildVendorSummaries(recs)
	require.Len(t, chunks, 1, "single-transaction vendors and empty vendors are skipped")

	c := chunks[0]
	assert.Equal(t, "vendor_CEMIG", c.ID)
	assert.Equal(t,
		"CEMIG: R$ 1,250.00 total across 3 transactions. "+
			"Monthly breakdown: 2024-01: R$ 500.00, 2024-02: R$ 750.00. Categories: Maintenance, Utilities.",
		c.Content)
	md := c.Metadata()
	assert.Equal(t, 3, md[KeyTransactionCount])
	assert.Equal(t, 2, md[KeyMonthCount])
}

func TestBuildAll(t *testing.T) {
	recs := []domain.ExpenseRecord{
		rec("1", "Energia", 50000, "CEMIG", "utilities", "power_supply", "2024-02"),
		rec("2", "Água", 30000, "COPASA", "utilities", "water", "2024-02"),
		rec("3", "Energia", 52000, "CEMIG", "utilities", "power_supply", "2024-01"),
		rec("4", "Elevador", 60000, "Atlas", "maintenance", "elevator", "2024-01"),
	}
	chunks := NewBuilder().BuildAll(recs)

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		require.NoError(t, CheckFlat(c.Metadata()), c.ID)
	}
	assert.Equal(t, []string{
		"expense_1", "expense_2", "expense_3", "expense_4",
		"monthly_2024-01",
		"monthly_2024-02", "category_utilities_2024-02",
		"vendor_CEMIG",
	}, ids)

	again := NewBuilder().BuildAll(recs)
	assert.Equal(t, chunks, again, "build must be deterministic")

	assert.Nil(t, NewBuilder().BuildAll(nil))
}

func TestCheckFlat(t *testing.T) {
	assert.NoError(t, CheckFlat(Metadata{"a": "x", "b": 1, "c": 2.5, "d": true}))
	assert.ErrorIs(t, CheckFlat(Metadata{"nested": map[string]any{"x": 1}}), ErrNestedMetadata)
	assert.ErrorIs(t, CheckFlat(Metadata{"list": []string{"a"}}), ErrNestedMetadata)
}

func TestMetadataAccessors(t *testing.T) {
	md := Metadata{KeyAmount: 12.5, KeyChunkType: "vendor_summary", KeyExpenseCount: int64(3), KeyVendor: "CEMIG"}
	amt, ok := md.Amount()
	require.True(t, ok)
	assert.Equal(t, int64(1250), amt.Cents())
	assert.Equal(t, KindVendor, md.Kind())
	n, ok := md.Int(KeyExpenseCount)
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	assert.Equal(t, "CEMIG", md.String(KeyVendor))
	_, ok = Metadata{}.Amount()
	assert.False(t, ok)
}

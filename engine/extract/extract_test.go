package extract

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WessleyAI/condo-ledger/engine/domain"
	"github.com/WessleyAI/condo-ledger/pkg/money"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in    string
		loc   money.Locale
		cents int64
	}{
		{"R$ 1.234,56", money.LocaleBR, 123456},
		{"(50,00)", money.LocaleBR, -5000},
		{"1,234.56", money.LocaleUS, 123456},
		{"-", money.LocaleBR, 0},
		{"N/A", money.LocaleBR, 0},
		{"  ", money.LocaleBR, 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in, tt.loc)
			require.NoError(t, err)
			assert.Equal(t, tt.cents, got.Cents())
			assert.Equal(t, money.BRL, got.Currency())
		})
	}

	_, err := ParseAmount("abc", money.LocaleBR)
	assert.ErrorIs(t, err, money.ErrInvalidAmount)
}

func TestCategorizer(t *testing.T) {
	c := NewCategorizer(nil)
	tests := map[string][2]string{
		"CEMIG - Energia Elétrica":      {"utilities", "power_supply"},
		"COPASA água e esgoto":          {"utilities", "water"},
		"Manutenção elevador Atlas":     {"maintenance", "elevator"},
		"Serviço de LIMPEZA":            {"maintenance", "cleaning"},
		"Portaria 24h":                  {"services", "security"},
		"Honorários do contador":        {"services", "accounting"},
		"Papelaria e escritório":        {"supplies", "office"},
		"Festa junina":                  {"other", "miscellaneous"},
		"Conserto do portão e limpeza":  {"maintenance", "cleaning"},
		"Material de limpeza (sabão)":   {"maintenance", "cleaning"},
		"Detergente e sabão":            {"supplies", "cleaning_supplies"},
	}
	for desc, want := range tests {
		t.Run(desc, func(t *testing.T) {
			cat, sub := c.Categorize(desc)
			assert.Equal(t, want[0], cat)
			assert.Equal(t, want[1], sub)
		})
	}

	empty := NewCategorizer([]Rule{})
	cat, sub := empty.Categorize("energia")
	assert.Equal(t, domain.CategoryOther, cat)
	assert.Equal(t, domain.SubcategoryMisc, sub)
}

func TestMonthFromFilename(t *testing.T) {
	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"PACTO_BALANCETE_0913_2503.pdf", "2025-03", true},
		{"PACTO_BALANCETE_0913_2412.PDF", "2024-12", true},
		{"balancete_9907.pdf", "1999-07", true},
		{"balancete_3001.pdf", "2030-01", true},
		{"Balancete Março 2025.pdf", "2025-03", true},
		{"march_2011.pdf", "2011-03", true},
		{"report-out-2024.pdf", "2024-10", true},
		{"report_2025.pdf", "", false},
		{"notes.txt", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MonthFromFilename(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitCells(t *testing.T) {
	assert.Equal(t, []string{"Energia elétrica", "CEMIG", "1.000,00"}, SplitCells("  Energia elétrica   CEMIG  1.000,00 "))
	assert.Equal(t, []string{"single cell"}, SplitCells("single cell"))
	assert.Nil(t, SplitCells("   "))
}

func TestRowsToExpenses(t *testing.T) {
	groups := []RowGroup{
		{Page: 1, Rows: [][]string{
			{"Balancete", "Março 2025"},
			{"Descrição", "Fornecedor", "Valor"},
			{"Energia elétrica", "CEMIG", "1.000,00"},
			{"Água", "COPASA", "350,50"},
			{"ab", "X", "10,00"},
			{"Saldo anterior", "", "0,00"},
			{"Taxa bancária", "", "abc"},
		}},
		{Page: 2, Rows: [][]string{
			{"Limpeza mensal", "", "(120,00)"},
		}},
	}
	got := RowsToExpenses(groups, RowsConfig{Document: "BAL_2503", MonthYear: "2025-03", Locale: money.LocaleBR})
	require.Len(t, got, 3)

	assert.Equal(t, "BAL_2503_1", got[0].ID)
	assert.Equal(t, "Energia elétrica", got[0].Description)
	assert.Equal(t, "CEMIG", got[0].Vendor)
	assert.Equal(t, int64(100000), got[0].Amount.Cents())
	assert.Equal(t, "utilities", got[0].Category)
	assert.Equal(t, "power_supply", got[0].Subcategory)
	assert.Equal(t, "2025-03", got[0].MonthYear)
	assert.Equal(t, money.BRL, got[0].Currency)
	assert.Equal(t, "BAL_2503", got[0].Document)

	assert.Equal(t, "BAL_2503_2", got[1].ID)
	assert.Equal(t, "water", got[1].Subcategory)

	// page 2 has no header: description column 0, amount the last column
	assert.Equal(t, "BAL_2503_6", got[2].ID)
	assert.Equal(t, int64(-12000), got[2].Amount.Cents())
	assert.Empty(t, got[2].Vendor)
	for _, e := range got {
		assert.NoError(t, domain.ValidateExpense(e))
	}
}

func TestRowsToExpenses_HeaderlessKeepsKeywordRows(t *testing.T) {
	groups := []RowGroup{{Rows: [][]string{
		{"Limpeza mensal", "300,00"},
		{"Conta de água", "450,00"},
		{"Item de manutenção", "120,00"},
		{"Manutenção elevador", "800,00"},
	}}}
	got := RowsToExpenses(groups, RowsConfig{Document: "BAL_2503", MonthYear: "2025-03", Locale: money.LocaleBR})
	require.Len(t, got, 4)
	assert.Equal(t, "Limpeza mensal", got[0].Description)
	assert.Equal(t, "Conta de água", got[1].Description)
	assert.Equal(t, int64(45000), got[1].Amount.Cents())
	assert.Equal(t, "BAL_2503_4", got[3].ID)
}

func TestPDFExtractor_Errors(t *testing.T) {
	ex := NewPDFExtractor(PDFOptions{})
	var xerr *domain.ExtractionError

	_, err := ex.ExtractTables(filepath.Join(t.TempDir(), "missing_2503.pdf"))
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, "missing_2503.pdf", xerr.Document)
	assert.ErrorIs(t, err, domain.ErrExtraction)

	bad := filepath.Join(t.TempDir(), "corrupt_2503.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("definitely not a pdf"), 0o644))
	_, err = ex.ExtractTables(bad)
	assert.ErrorIs(t, err, domain.ErrExtraction)
	_, err = ex.ExtractText(bad)
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

type stubExtractor struct {
	groups []RowGroup
	err    error
	paths  []string
}

func (s *stubExtractor) ExtractTables(path string) ([]RowGroup, error) {
	s.paths = append(s.paths, path)
	return s.groups, s.err
}

func (s *stubExtractor) ExtractText(string) (string, error) { return "", nil }

func TestReader(t *testing.T) {
	stub := &stubExtractor{groups: []RowGroup{{Rows: [][]string{{"Energia", "500,00"}}}}}
	r := NewReader(stub, nil, "")

	got, err := r.Read("/data/PACTO_BALANCETE_0913_2503.pdf")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "PACTO_BALANCETE_0913_2503_1", got[0].ID)
	assert.Equal(t, "2025-03", got[0].MonthYear)

	_, err = r.Read("/data/undated.pdf")
	assert.ErrorIs(t, err, domain.ErrExtraction)
	assert.ErrorIs(t, err, domain.ErrInvalidMonth)
	assert.Len(t, stub.paths, 1, "undated files are not opened")

	stub.err = &domain.ExtractionError{Document: "x", Err: errors.New("boom")}
	_, err = r.Read("/data/x_2503.pdf")
	assert.ErrorIs(t, err, domain.ErrExtraction)
}

func TestListPDFs(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b_2502.pdf", "a_2501.PDF", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0o644))
	}
	got, err := ListPDFs(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a_2501.PDF"), filepath.Join(dir, "b_2502.pdf")}, got)
}

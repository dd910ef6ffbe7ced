package ingest

import (
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/WessleyAI/condo-ledger/engine/domain"
	"github.com/WessleyAI/condo-ledger/pkg/money"
)

// csvRow is the on-disk layout of an expense snapshot. Amount is a plain
// decimal string in major units.
type csvRow struct {
	ID          string `csv:"id"`
	Description string `csv:"description"`
	Amount      string `csv:"amount"`
	Vendor      string `csv:"vendor"`
	Category    string `csv:"category"`
	Subcategory string `csv:"subcategory"`
	MonthYear   string `csv:"month_year"`
	Currency    string `csv:"currency"`
	Document    string `csv:"document"`
}

// LoadCSV reads an expense snapshot written by WriteCSV.
func LoadCSV(r io.Reader) ([]domain.ExpenseRecord, error) {
	var rows []csvRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("ingest: read csv: %w", err)
	}
	out := make([]domain.ExpenseRecord, 0, len(rows))
	for i, row := range rows {
		d, err := decimal.NewFromString(row.Amount)
		if err != nil {
			return nil, fmt.Errorf("ingest: csv row %d: %w: %q", i+1, money.ErrInvalidAmount, row.Amount)
		}
		cur := row.Currency
		if cur == "" {
			cur = money.DefaultCurrency
		}
		out = append(out, domain.ExpenseRecord{
			ID:          row.ID,
			Description: row.Description,
			Amount:      money.FromDecimal(d, cur),
			Vendor:      row.Vendor,
			Category:    row.Category,
			Subcategory: row.Subcategory,
			MonthYear:   row.MonthYear,
			Currency:    cur,
			Document:    row.Document,
		})
	}
	return out, nil
}

// LoadCSVFile opens path and calls LoadCSV.
func LoadCSVFile(path string) ([]domain.ExpenseRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open csv: %w", err)
	}
	defer f.Close()
	return LoadCSV(f)
}

// WriteCSV writes records as an expense snapshot.
func WriteCSV(w io.Writer, recs []domain.ExpenseRecord) error {
	rows := make([]csvRow, len(recs))
	for i, r := range recs {
		rows[i] = csvRow{
			ID:          r.ID,
			Description: r.Description,
			Amount:      r.Amount.Decimal().String(),
			Vendor:      r.Vendor,
			Category:    r.Category,
			Subcategory: r.Subcategory,
			MonthYear:   r.MonthYear,
			Currency:    r.Currency,
			Document:    r.Document,
		}
	}
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("ingest: write csv: %w", err)
	}
	return nil
}

package extract

import (
	"path/filepath"
	"strings"

	"github.com/WessleyAI/condo-ledger/engine/domain"
	"github.com/WessleyAI/condo-ledger/pkg/money"
)

// Reader turns one report file into expense records.
type Reader struct {
	ex     Extractor
	cat    *Categorizer
	locale money.Locale
}

// NewReader creates a Reader. Nil arguments get the PDF extractor and the
// default keyword table.
func NewReader(ex Extractor, cat *Categorizer, locale money.Locale) *Reader {
	if ex == nil {
		ex = NewPDFExtractor(PDFOptions{})
	}
	if cat == nil {
		cat = NewCategorizer(nil)
	}
	if locale == "" {
		locale = money.LocaleBR
	}
	return &Reader{ex: ex, cat: cat, locale: locale}
}

// Read extracts the records of one document. A file whose name carries no
// month, or that cannot be parsed, gives an *domain.ExtractionError.
func (r *Reader) Read(path string) ([]domain.ExpenseRecord, error) {
	base := filepath.Base(path)
	month, ok := MonthFromFilename(base)
	if !ok {
		return nil, &domain.ExtractionError{
			Document: base,
			Err:      domain.NewValidationError("month_year", base, domain.ErrInvalidMonth),
		}
	}
	groups, err := r.ex.ExtractTables(path)
	if err != nil {
		return nil, err
	}
	return RowsToExpenses(groups, RowsConfig{
		Document:    strings.TrimSuffix(base, filepath.Ext(base)),
		MonthYear:   month,
		Locale:      r.locale,
		Categorizer: r.cat,
	}), nil
}

// ListPDFs returns the PDF files directly inside dir, sorted by name.
func ListPDFs(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.[pP][dD][fF]"))
	if err != nil {
		return nil, err
	}
	return matches, nil
}

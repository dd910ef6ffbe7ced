// Package extract reads trial-balance PDFs into expense records: table rows
// from the page layout, amounts in a configured locale, keyword categories,
// and the ledger month from the file name.
package extract

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/dslipak/pdf"

	"github.com/WessleyAI/condo-ledger/engine/domain"
)

// RowGroup is the table-like content of one page: rows of cells, top to bottom.
type RowGroup struct {
	Page int
	Rows [][]string
}

// Extractor reads a source document.
type Extractor interface {
	ExtractTables(path string) ([]RowGroup, error)
	ExtractText(path string) (string, error)
}

// PDFOptions tunes layout reconstruction.
type PDFOptions struct {
	// RowTolerance is the vertical distance, in points, within which glyphs share a row.
	RowTolerance float64
	// CellGap is the horizontal gap, in points, that starts a new cell.
	CellGap float64
}

// DefaultPDFOptions returns tolerances that suit typical accounting reports.
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{RowTolerance: 2, CellGap: 6}
}

// PDFExtractor implements Extractor with dslipak/pdf.
type PDFExtractor struct {
	opts PDFOptions
}

// NewPDFExtractor creates a PDFExtractor.
func NewPDFExtractor(opts PDFOptions) *PDFExtractor {
	d := DefaultPDFOptions()
	if opts.RowTolerance <= 0 {
		opts.RowTolerance = d.RowTolerance
	}
	if opts.CellGap <= 0 {
		opts.CellGap = d.CellGap
	}
	return &PDFExtractor{opts: opts}
}

var cellSplit = regexp.MustCompile(`\s{2,}`)

// SplitCells splits a text line into cells on runs of two or more spaces.
func SplitCells(line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	return cellSplit.Split(line, -1)
}

func open(path string) (*pdf.Reader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &domain.ExtractionError{Document: filepath.Base(path), Err: err}
	}
	r, err := pdf.Open(path)
	if err != nil {
		return nil, &domain.ExtractionError{Document: filepath.Base(path), Err: err}
	}
	return r, nil
}

// ExtractText returns the document's plain text.
func (e *PDFExtractor) ExtractText(path string) (text string, err error) {
	defer recoverInto(path, &err)
	r, err := open(path)
	if err != nil {
		return "", err
	}
	rd, err := r.GetPlainText()
	if err != nil {
		return "", &domain.ExtractionError{Document: filepath.Base(path), Err: err}
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rd); err != nil {
		return "", &domain.ExtractionError{Document: filepath.Base(path), Err: err}
	}
	return buf.String(), nil
}

// ExtractTables rebuilds each page's rows from glyph positions. Rows with
// fewer than two cells are dropped.
func (e *PDFExtractor) ExtractTables(path string) (groups []RowGroup, err error) {
	defer recoverInto(path, &err)
	r, err := open(path)
	if err != nil {
		return nil, err
	}
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		var rows [][]string
		for _, line := range e.lines(p.Content().Text) {
			if cells := SplitCells(line); len(cells) >= 2 {
				rows = append(rows, cells)
			}
		}
		if len(rows) > 0 {
			groups = append(groups, RowGroup{Page: i, Rows: rows})
		}
	}
	return groups, nil
}

// lines groups glyphs into text lines, top to bottom. A horizontal gap wider
// than CellGap becomes a double space so SplitCells can find it.
func (e *PDFExtractor) lines(texts []pdf.Text) []string {
	type row struct {
		y     float64
		glyph []pdf.Text
	}
	var rows []*row
	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" && t.S != " " {
			continue
		}
		idx := slices.IndexFunc(rows, func(r *row) bool { return math.Abs(r.y-t.Y) <= e.opts.RowTolerance })
		if idx < 0 {
			rows = append(rows, &row{y: t.Y})
			idx = len(rows) - 1
		}
		rows[idx].glyph = append(rows[idx].glyph, t)
	}
	slices.SortFunc(rows, func(a, b *row) int { return cmp.Compare(b.y, a.y) })

	out := make([]string, 0, len(rows))
	for _, r := range rows {
		slices.SortStableFunc(r.glyph, func(a, b pdf.Text) int { return cmp.Compare(a.X, b.X) })
		var sb strings.Builder
		end := math.Inf(-1)
		for _, g := range r.glyph {
			if !math.IsInf(end, -1) && g.X-end > e.opts.CellGap {
				sb.WriteString("  ")
			}
			sb.WriteString(g.S)
			end = g.X + g.W
		}
		out = append(out, sb.String())
	}
	return out
}

// recoverInto turns a parser panic on a malformed file into an ExtractionError.
func recoverInto(path string, err *error) {
	if r := recover(); r != nil {
		*err = &domain.ExtractionError{Document: filepath.Base(path), Err: fmt.Errorf("malformed pdf: %v", r)}
	}
}

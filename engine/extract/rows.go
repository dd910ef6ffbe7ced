package extract

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/WessleyAI/condo-ledger/engine/domain"
	"github.com/WessleyAI/condo-ledger/pkg/money"
)

var emptyAmounts = []string{"", "-", "N/A", "n/a"}

// ParseAmount reads a report amount in the given locale. Blank markers
// ("", "-", "N/A") parse as zero.
func ParseAmount(s string, loc money.Locale) (money.Amount, error) {
	if slices.Contains(emptyAmounts, strings.TrimSpace(s)) {
		return money.Zero(money.BRL), nil
	}
	return money.Parse(s, loc, money.BRL)
}

var (
	yymmRe  = regexp.MustCompile(`(?i)(\d{2})(\d{2})\.pdf$`)
	tokenRe = regexp.MustCompile(`[\p{L}]+|\d+`)
)

var monthTokens = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,
	"janeiro": 1, "fevereiro": 2, "marco": 3, "março": 3, "abril": 4, "maio": 5, "junho": 6,
	"julho": 7, "agosto": 8, "setembro": 9, "outubro": 10, "novembro": 11, "dezembro": 12,
	"jan": 1, "feb": 2, "fev": 2, "mar": 3, "apr": 4, "abr": 4, "jun": 6, "jul": 7,
	"aug": 8, "ago": 8, "sep": 9, "set": 9, "oct": 10, "out": 10, "nov": 11, "dec": 12, "dez": 12,
}

// MonthFromFilename derives the ledger month from a report file name: a
// month name next to a four-digit year, or else a trailing YYMM before ".pdf"
// (00-30 are 2000s, the rest 1900s).
func MonthFromFilename(name string) (string, bool) {
	var month, year int
	for _, tok := range tokenRe.FindAllString(strings.ToLower(name), -1) {
		if n, ok := monthTokens[tok]; ok && month == 0 {
			month = n
			continue
		}
		if len(tok) == 4 && year == 0 {
			if y, err := strconv.Atoi(tok); err == nil && y >= 1900 && y <= 2100 {
				year = y
			}
		}
	}
	if month != 0 && year != 0 {
		return fmt.Sprintf("%04d-%02d", year, month), true
	}

	if m := yymmRe.FindStringSubmatch(name); m != nil {
		yy, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm >= 1 && mm <= 12 {
			year := 1900 + yy
			if yy <= 30 {
				year = 2000 + yy
			}
			return fmt.Sprintf("%04d-%02d", year, mm), true
		}
	}
	return "", false
}

var (
	descHeaders   = []string{"descri", "conta", "item", "historico", "histórico"}
	amountHeaders = []string{"valor", "debito", "débito", "credito", "crédito", "amount"}
	vendorHeaders = []string{"fornecedor", "vendor", "credor"}
)

type columns struct {
	desc, amount, vendor int
}

// detectColumns finds a header row among the rows before the first data row
// (one whose last cell is a non-zero amount). Without one, description is
// column 0 and amount the last column.
func detectColumns(rows [][]string, loc money.Locale) (columns, int) {
	for i, row := range rows {
		if isDataRow(row, loc) {
			break
		}
		cols := columns{desc: -1, amount: -1, vendor: -1}
		for j, c := range row {
			h := strings.ToLower(strings.TrimSpace(c))
			switch {
			case cols.desc < 0 && containsAny(h, descHeaders):
				cols.desc = j
			case cols.amount < 0 && containsAny(h, amountHeaders):
				cols.amount = j
			case cols.vendor < 0 && containsAny(h, vendorHeaders):
				cols.vendor = j
			}
		}
		if cols.desc >= 0 || cols.amount >= 0 {
			if cols.desc < 0 {
				cols.desc = 0
			}
			if cols.amount < 0 {
				cols.amount = len(row) - 1
			}
			return cols, i
		}
	}
	return columns{desc: 0, amount: -1, vendor: -1}, -1
}

func isDataRow(row []string, loc money.Locale) bool {
	if len(row) == 0 {
		return false
	}
	amt, err := ParseAmount(row[len(row)-1], loc)
	return err == nil && !amt.IsZero()
}

func containsAny(s string, subs []string) bool {
	return slices.ContainsFunc(subs, func(sub string) bool { return strings.Contains(s, sub) })
}

// RowsConfig carries what RowsToExpenses needs besides the rows.
type RowsConfig struct {
	Document    string
	MonthYear   string
	Locale      money.Locale
	Categorizer *Categorizer
}

// RowsToExpenses turns extracted rows into expense records. Rows whose
// description is under three characters or whose amount is zero or
// unparseable are skipped. Row numbers in IDs count across groups from 1.
func RowsToExpenses(groups []RowGroup, cfg RowsConfig) []domain.ExpenseRecord {
	if cfg.Categorizer == nil {
		cfg.Categorizer = NewCategorizer(nil)
	}
	var out []domain.ExpenseRecord
	rowNum := 0
	for _, g := range groups {
		cols, header := detectColumns(g.Rows, cfg.Locale)
		for i, row := range g.Rows {
			if i <= header {
				continue
			}
			rowNum++
			amountCol := cols.amount
			if amountCol < 0 {
				amountCol = len(row) - 1
			}
			desc := strings.TrimSpace(cell(row, cols.desc))
			if len([]rune(desc)) < 3 {
				continue
			}
			amt, err := ParseAmount(cell(row, amountCol), cfg.Locale)
			if err != nil || amt.IsZero() {
				continue
			}
			cat, sub := cfg.Categorizer.Categorize(desc)
			out = append(out, domain.ExpenseRecord{
				ID:          fmt.Sprintf("%s_%d", cfg.Document, rowNum),
				Description: desc,
				Amount:      amt,
				Vendor:      strings.TrimSpace(cell(row, cols.vendor)),
				Category:    cat,
				Subcategory: sub,
				MonthYear:   cfg.MonthYear,
				Currency:    money.BRL,
				Document:    cfg.Document,
			})
		}
	}
	return out
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// Package money provides fixed-point currency amounts stored as integer minor
// units. Arithmetic goes through go-money and conversions through
// shopspring/decimal so ledger totals never drift the way float sums do.
package money

import (
	"errors"
	"fmt"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Currency codes used by the ledger (ISO-4217).
const (
	BRL = "BRL"
	USD = "USD"
)

// DefaultCurrency is the currency assumed when none is given.
const DefaultCurrency = BRL

var ErrCurrencyMismatch = errors.New("money: currency mismatch")

// Amount is an immutable monetary value in minor units.
type Amount struct {
	cents    int64
	currency string
}

// New creates an Amount from minor units.
func New(cents int64, currency string) Amount {
	if currency == "" {
		currency = DefaultCurrency
	}
	return Amount{cents: cents, currency: currency}
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Amount { return New(0, currency) }

// FromDecimal rounds d to the currency's minor unit.
func FromDecimal(d decimal.Decimal, currency string) Amount {
	mult := decimal.New(1, int32(fraction(currency)))
	return New(d.Mul(mult).Round(0).IntPart(), currency)
}

// FromFloat converts a float read back from index metadata.
func FromFloat(f float64, currency string) Amount {
	return FromDecimal(decimal.NewFromFloat(f), currency)
}

func fraction(currency string) int {
	if currency == "" {
		currency = DefaultCurrency
	}
	if c := gomoney.GetCurrency(currency); c != nil {
		return c.Fraction
	}
	return 2
}

// Cents returns the amount in minor units.
func (a Amount) Cents() int64 { return a.cents }

// Currency returns the ISO-4217 code.
func (a Amount) Currency() string {
	if a.currency == "" {
		return DefaultCurrency
	}
	return a.currency
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.cents == 0 }

// Decimal returns the amount as an exact decimal.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(a.cents, -int32(fraction(a.currency)))
}

// Float64 is for the metadata boundary only; do not sum the result.
func (a Amount) Float64() float64 {
	return a.Decimal().InexactFloat64()
}

// Add returns a+b. Both must share a currency.
func (a Amount) Add(b Amount) (Amount, error) {
	sum, err := gomoney.New(a.cents, a.Currency()).Add(gomoney.New(b.cents, b.Currency()))
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %s + %s", ErrCurrencyMismatch, a.Currency(), b.Currency())
	}
	return New(sum.Amount(), sum.Currency().Code), nil
}

// Sum adds amounts in the given currency. Amounts in other currencies are an error.
func Sum(currency string, amounts ...Amount) (Amount, error) {
	total := Zero(currency)
	for _, a := range amounts {
		var err error
		if total, err = total.Add(a); err != nil {
			return Amount{}, err
		}
	}
	return total, nil
}

// MustSum is Sum for single-currency ledgers; it panics on mismatch.
func MustSum(currency string, amounts ...Amount) Amount {
	total, err := Sum(currency, amounts...)
	if err != nil {
		panic(err)
	}
	return total
}

// Cmp compares minor units, ignoring currency.
func (a Amount) Cmp(b Amount) int {
	switch {
	case a.cents < b.cents:
		return -1
	case a.cents > b.cents:
		return 1
	}
	return 0
}

// GreaterThan reports whether a is above the given major-unit threshold.
func (a Amount) GreaterThan(major int64) bool {
	return a.Decimal().GreaterThan(decimal.NewFromInt(major))
}

// Format renders "R$ 1,234.56": symbol, a space, thousands commas, fixed fraction.
func (a Amount) Format() string {
	grapheme := a.Currency()
	if c := gomoney.GetCurrency(a.Currency()); c != nil {
		grapheme = c.Grapheme
	}
	f := gomoney.NewFormatter(fraction(a.currency), ".", ",", grapheme, "$ 1")
	return f.Format(a.cents)
}

func (a Amount) String() string { return a.Format() }

// MarshalJSON encodes the amount as a fixed-point JSON number in major units.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal().StringFixed(int32(fraction(a.currency)))), nil
}

// UnmarshalJSON reads a JSON number (or numeric string) in major units. The
// currency is kept if already set, otherwise DefaultCurrency.
func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "null" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, s)
	}
	*a = FromDecimal(d, a.currency)
	return nil
}

// Locale selects the separator convention for parsing amount strings.
type Locale string

const (
	// LocaleBR reads "1.234,56".
	LocaleBR Locale = "pt-BR"
	// LocaleUS reads "1,234.56".
	LocaleUS Locale = "en-US"
)

// ParseLocale validates a locale name.
func ParseLocale(s string) (Locale, error) {
	switch Locale(s) {
	case LocaleBR, LocaleUS:
		return Locale(s), nil
	}
	return "", fmt.Errorf("money: unsupported locale %q", s)
}

var ErrInvalidAmount = errors.New("money: invalid amount")

// Parse reads an amount string such as "R$ 1.234,56" or "(50,00)".
// Parenthesised values are negative.
func Parse(s string, loc Locale, currency string) (Amount, error) {
	raw := s
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	for _, sym := range []string{"R$", "US$", "$"} {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.Join(strings.Fields(s), "")
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	}
	if s == "" {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	switch loc {
	case LocaleUS:
		s = strings.ReplaceAll(s, ",", "")
	default:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if negative {
		d = d.Neg()
	}
	return FromDecimal(d, currency), nil
}

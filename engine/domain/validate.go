package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Injection patterns: statement separators before a SQL verb, template
// expansions and NoSQL operators. Plain words such as "union" or "update" are
// ordinary in ledger questions and pass.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(--|;)\s*(DROP|DELETE|SELECT|INSERT|UPDATE|ALTER|UNION|EXEC)\b`),
	regexp.MustCompile(`(?i)\$\{.*\}`),
	regexp.MustCompile(`(?i)\{\s*"\$[a-z]+"\s*:`),
}

const (
	minQuestionLength = 3
	maxQuestionLength = 1000
	minDescription    = 3
)

// ValidateQuestion checks a free-text ledger question.
func ValidateQuestion(question string) error {
	text := strings.TrimSpace(question)

	n := utf8.RuneCountInString(text)
	if n < minQuestionLength {
		return NewValidationError("question", text, ErrQueryTooShort)
	}
	if n > maxQuestionLength {
		return NewValidationError("question", string([]rune(text)[:64]), ErrQueryTooLong)
	}

	for _, pat := range injectionPatterns {
		if pat.MatchString(text) {
			return NewValidationError("question", text, ErrQueryInjection)
		}
	}
	return nil
}

// ValidateExpense checks an extracted record before it is chunked.
func ValidateExpense(e ExpenseRecord) error {
	if strings.TrimSpace(e.ID) == "" {
		return NewValidationError("id", e.ID, ErrInvalidExpense)
	}
	if utf8.RuneCountInString(strings.TrimSpace(e.Description)) < minDescription {
		return NewValidationError("description", e.Description, ErrEmptyDescription)
	}
	if e.Amount.IsZero() {
		return NewValidationError("amount", "0", ErrZeroAmount)
	}
	if _, err := ParseMonthYear(e.MonthYear); err != nil {
		return err
	}
	return nil
}

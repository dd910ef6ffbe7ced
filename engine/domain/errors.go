package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures.
var (
	ErrInvalidQuery     = errors.New("invalid query")
	ErrQueryTooShort    = errors.New("query too short")
	ErrQueryTooLong     = errors.New("query too long")
	ErrQueryInjection   = errors.New("query contains suspicious content")
	ErrInvalidMonth     = errors.New("invalid month_year")
	ErrInvalidExpense   = errors.New("invalid expense")
	ErrEmptyDescription = errors.New("description too short")
	ErrZeroAmount       = errors.New("amount is zero")
)

// Pipeline and runtime failures.
var (
	ErrExtraction        = errors.New("extraction failed")
	ErrIndexing          = errors.New("indexing failed")
	ErrNoChunks          = errors.New("no chunks to index")
	ErrRoutingMiss       = errors.New("no data matches the question")
	ErrRetrievalTimeout  = errors.New("retrieval timed out")
	ErrCompletionFailure = errors.New("completion failed")
	ErrStoreUnavailable  = errors.New("semantic store unavailable")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

// ExtractionError marks a source document that could not be read. The batch skips it.
type ExtractionError struct {
	Document string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Document, e.Err)
}

func (e *ExtractionError) Unwrap() []error { return []error{ErrExtraction, e.Err} }

// IndexingError marks a chunk or batch that was skipped during a bulk load.
type IndexingError struct {
	Unit string
	Err  error
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("index %s: %v", e.Unit, e.Err)
}

func (e *IndexingError) Unwrap() []error { return []error{ErrIndexing, e.Err} }

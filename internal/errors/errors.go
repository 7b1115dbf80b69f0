// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrDivisionUndefined = errors.New("division undefined")
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrQuoteUnavailable  = errors.New("quote unavailable")
	ErrSymbolNotFound    = errors.New("symbol not found")
	ErrRateLimited       = errors.New("rate limited")
	ErrNotConfigured     = errors.New("not configured")
	ErrDataNotFound      = errors.New("data not found")
	ErrCircuitOpen       = errors.New("circuit breaker is open")
)

// DivisionError reports a zero divisor met while valuing a position.
// It always unwraps to ErrDivisionUndefined.
type DivisionError struct {
	Symbol string
	Field  string
}

func (e *DivisionError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("division undefined: %s is zero", e.Field)
	}
	return fmt.Sprintf("division undefined: %s %s is zero", e.Symbol, e.Field)
}

func (e *DivisionError) Unwrap() error {
	return ErrDivisionUndefined
}

// NewDivisionError creates a new DivisionError.
func NewDivisionError(symbol, field string) *DivisionError {
	return &DivisionError{
		Symbol: symbol,
		Field:  field,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// QuoteError represents a failure fetching a quote from a provider.
type QuoteError struct {
	Provider string
	Symbol   string
	Message  string
	Err      error
}

func (e *QuoteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("quote error [%s] %s: %s: %v", e.Provider, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("quote error [%s] %s: %s", e.Provider, e.Symbol, e.Message)
}

func (e *QuoteError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrQuoteUnavailable
}

// NewQuoteError creates a new QuoteError.
func NewQuoteError(provider, symbol, message string, err error) *QuoteError {
	return &QuoteError{
		Provider: provider,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

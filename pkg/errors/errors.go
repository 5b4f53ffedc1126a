package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")
)

// Ledger errors

var (
	// ErrInsufficientFunds indicates a buy costs more than the available cash
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientShares indicates a sell exceeds the held quantity
	ErrInsufficientShares = errors.New("insufficient shares")

	// ErrUnknownSymbol indicates a sell for a symbol that is not held
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrQuoteUnavailable indicates a held symbol could not be priced
	ErrQuoteUnavailable = errors.New("quote unavailable")
)

// Negotiation errors

var (
	// ErrEvaluationParse indicates the reviewer reply carried no usable score
	ErrEvaluationParse = errors.New("evaluation parse error")

	// ErrExternalService indicates a reasoning, market data or news call failed
	ErrExternalService = errors.New("external service error")
)

// DomainError wraps an error with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// External marks err as an ExternalServiceError raised by service.
func External(service string, err error) error {
	if err == nil {
		return nil
	}
	return NewDomainError("external", service, fmt.Errorf("%w: %w", ErrExternalService, err))
}

// MultiError collects independent failures, e.g. one per trade instruction.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	switch len(m.Errors) {
	case 0:
		return "no errors"
	case 1:
		return m.Errors[0].Error()
	}
	msgs := make([]string, 0, len(m.Errors))
	for _, err := range m.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("multiple errors (%d): %s", len(m.Errors), strings.Join(msgs, "; "))
}

// Unwrap exposes the collected errors to errors.Is / errors.As.
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add adds an error to the list
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// HasErrors returns true if there are any errors
func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// ToError returns the MultiError as an error, or nil if no errors
func (m *MultiError) ToError() error {
	if !m.HasErrors() {
		return nil
	}
	return m
}

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New creates a plain error
func New(text string) error {
	return errors.New(text)
}

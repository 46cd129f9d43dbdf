// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Validation errors (100-199): Invalid parameters, missing data, type mismatches
//   - Connectivity errors (200-299): Gateway connect, timeout, client id collisions
//   - Market data errors (300-399): Quote and historical bar acquisition
//   - Strategy errors (400-499): Strategy construction and runtime errors
//   - Order errors (500-599): Order submission, bracket linkage and confirmation
//   - Scheduler errors (600-699): Cycle and shutdown failures
//   - Telemetry errors (700-799): Event sink failures
//   - Callback errors (800-899): Callback execution failures
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidParameter, "invalid parameter value")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeQuoteUnavailable, "no quote for symbol %s", symbol)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeOrderFailed, "failed to place entry order", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeConnectionTimeout) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode returns the code of the first coded error in err's chain. An
// InsufficientDataError reports ErrCodeInsufficientData. Anything else is ErrCodeUnknown.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	if IsInsufficientDataError(err) {
		return ErrCodeInsufficientData
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// IsTimeout reports whether err carries ErrCodeConnectionTimeout anywhere in its chain.
func IsTimeout(err error) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}

		if e.Code == ErrCodeConnectionTimeout {
			return true
		}

		err = e.Cause
	}

	return false
}

// InsufficientDataError is returned when a calculation has fewer data points than
// its period, e.g. a 14-bar CCI over 10 closes. Strategies treat it as "not ready yet".
type InsufficientDataError struct {
	Required int
	Actual   int
	// Symbol is optional context.
	Symbol  string
	Message string
}

func NewInsufficientDataError(required, actual int, symbol, message string) *InsufficientDataError {
	return &InsufficientDataError{Required: required, Actual: actual, Symbol: symbol, Message: message}
}

func NewInsufficientDataErrorf(required, actual int, symbol, format string, args ...any) *InsufficientDataError {
	return NewInsufficientDataError(required, actual, symbol, fmt.Sprintf(format, args...))
}

func (e *InsufficientDataError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("[%d] %s (have %d of %d)", ErrCodeInsufficientData, e.Message, e.Actual, e.Required)
	}

	return fmt.Sprintf("[%d] %s: %s (have %d of %d)", ErrCodeInsufficientData, e.Symbol, e.Message, e.Actual, e.Required)
}

// IsInsufficientDataError checks the whole chain.
func IsInsufficientDataError(err error) bool {
	var insufficientErr *InsufficientDataError

	return errors.As(err, &insufficientErr)
}

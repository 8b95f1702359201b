// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into ranges, and every range belongs to one
// Category of the settlement error taxonomy:
//   - General errors (1-99): unknown failures
//   - Validation errors (100-199): malformed trades, orders or rule values
//   - Configuration errors (200-299): unknown prop firms, bad run configuration
//   - Data integrity errors (300-399): quantity and PnL accounting problems
//   - Storage errors (400-499): persistence failures
//   - Market data errors (500-599): price history and current price failures
//   - Settlement errors (600-699): engine lifecycle misuse
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeUnknownPropFirm, "unknown prop firm")
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodePriceFetchFailed, "failed to fetch klines", originalErr)
//
//	// Let the caller decide whether to retry
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error carries a code from error_code.go, a message and an optional cause.
// The code decides the Category and therefore whether a caller retries.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New returns an Error without a cause.
func New(code ErrorCode, message string) *Error {
	return Wrap(code, message, nil)
}

// Newf is New with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return Wrap(code, fmt.Sprintf(format, args...), nil)
}

// Wrap attaches code and message to cause. A nil cause is allowed.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return Wrap(code, fmt.Sprintf(format, args...), cause)
}

// Error renders "[code] message" followed by ": cause" when there is one.
func (e *Error) Error() string {
	text := fmt.Sprintf("[%d] %s", e.Code, e.Message)
	if e.Cause == nil {
		return text
	}

	return text + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Category returns the taxonomy category of the error code.
func (e *Error) Category() Category {
	return e.Code.Category()
}

// GetCode returns the code of the first *Error in the chain, or
// ErrCodeUnknown when the chain has none.
func GetCode(err error) ErrorCode {
	var coded *Error
	if !errors.As(err, &coded) {
		return ErrCodeUnknown
	}

	return coded.Code
}

// HasCode compares the code of the first *Error in the chain.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// GetCategory returns the category of the first *Error in the chain.
func GetCategory(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	return GetCode(err).Category()
}

// IsRetryable reports whether the failure came from an external collaborator
// (price feed or persistence) and may succeed when the caller tries again.
// Configuration, validation and data integrity errors are never retryable.
func IsRetryable(err error) bool {
	return GetCategory(err) == CategoryExternalIO
}

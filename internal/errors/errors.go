package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// SearchError is the structured error type for searchkit.
// It provides rich context for error handling, logging, and user presentation.
type SearchError struct {
	// Code is the unique error code (e.g., "ERR_601_ALIAS_EXISTS").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Validation, Backend, Conflict, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the caller may retry the operation.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SearchError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with SearchError.
func (e *SearchError) Is(target error) bool {
	if t, ok := target.(*SearchError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SearchError) WithDetail(key, value string) *SearchError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *SearchError) WithSuggestion(suggestion string) *SearchError {
	e.Suggestion = suggestion
	return e
}

// New creates a new SearchError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *SearchError {
	return &SearchError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Newf creates a SearchError with a formatted message and no cause.
func Newf(code string, format string, args ...any) *SearchError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a SearchError from an existing error.
// The error's message becomes the SearchError message.
func Wrap(code string, err error) *SearchError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SearchError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation error for a malformed expression.
func ValidationError(message string, cause error) *SearchError {
	return New(ErrCodeInvalidExpression, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SearchError {
	return New(ErrCodeInternal, message, cause)
}

// BackendError classifies a failed backend call. A context deadline becomes
// ErrCodeBackendTimeout so callers can tell it apart from a backend-reported error.
func BackendError(op string, cause error) *SearchError {
	if cause == nil {
		return nil
	}
	var se *SearchError
	if stderrors.As(cause, &se) && se.Category == CategoryBackend {
		return se
	}
	if stderrors.Is(cause, context.DeadlineExceeded) {
		return New(ErrCodeBackendTimeout, op+" timed out", cause).WithDetail("operation", op)
	}
	return New(ErrCodeBackendFailure, op+" failed: "+cause.Error(), cause).WithDetail("operation", op)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var se *SearchError
	if stderrors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// IsValidation reports whether err is a validation failure raised before
// anything was sent to the backend.
func IsValidation(err error) bool {
	return GetCategory(err) == CategoryValidation
}

// IsQuerySyntax reports whether the backend rejected the query syntax.
func IsQuerySyntax(err error) bool {
	return GetCode(err) == ErrCodeQuerySyntax
}

// GetCode extracts the error code from a SearchError anywhere in the chain.
// Returns empty string if not a SearchError.
func GetCode(err error) string {
	var se *SearchError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a SearchError anywhere in the chain.
func GetCategory(err error) Category {
	var se *SearchError
	if stderrors.As(err, &se) {
		return se.Category
	}
	return ""
}

// Sentinels for errors.Is comparisons by code.
var (
	ErrAliasExists       = &SearchError{Code: ErrCodeAliasExists}
	ErrAliasAmbiguous    = &SearchError{Code: ErrCodeAliasAmbiguous}
	ErrAliasNotFound     = &SearchError{Code: ErrCodeAliasNotFound}
	ErrRebuildInProgress = &SearchError{Code: ErrCodeRebuildInProgress}
	ErrBackendTimeout    = &SearchError{Code: ErrCodeBackendTimeout}
	ErrQuerySyntax       = &SearchError{Code: ErrCodeQuerySyntax}
	ErrBulkPartial       = &SearchError{Code: ErrCodeBulkPartial}
	ErrInvalidExpression = &SearchError{Code: ErrCodeInvalidExpression}
)

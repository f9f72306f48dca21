// Package errors provides the structured error taxonomy for searchkit.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 3XX: Backend call errors (network, timeout, backend-reported)
//   - 4XX: Validation errors (expressions, fields, query strings)
//   - 5XX: Internal errors
//   - 6XX: Alias and index state conflicts
//   - 7XX: Partial bulk failures
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryBackend indicates a failed call to the search backend.
	CategoryBackend Category = "BACKEND"
	// CategoryValidation indicates a malformed expression or request.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
	// CategoryConflict indicates an alias or index state conflict.
	CategoryConflict Category = "CONFLICT"
	// CategoryBulk indicates that some documents of a bulk call failed.
	CategoryBulk Category = "BULK"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Backend errors (300-399)
	ErrCodeBackendTimeout     = "ERR_301_BACKEND_TIMEOUT"
	ErrCodeBackendUnavailable = "ERR_302_BACKEND_UNAVAILABLE"
	ErrCodeBackendFailure     = "ERR_303_BACKEND_FAILURE"
	ErrCodeQuerySyntax        = "ERR_304_QUERY_SYNTAX"

	// Validation errors (400-499)
	ErrCodeInvalidInput       = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidExpression  = "ERR_402_INVALID_EXPRESSION"
	ErrCodeUnknownField       = "ERR_403_UNKNOWN_FIELD"
	ErrCodeInvalidSchema      = "ERR_404_INVALID_SCHEMA"
	ErrCodeUnsupportedFeature = "ERR_405_UNSUPPORTED_FEATURE"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"

	// Conflict errors (600-699)
	ErrCodeAliasExists       = "ERR_601_ALIAS_EXISTS"
	ErrCodeAliasAmbiguous    = "ERR_602_ALIAS_AMBIGUOUS"
	ErrCodeAliasNotFound     = "ERR_603_ALIAS_NOT_FOUND"
	ErrCodeRebuildInProgress = "ERR_604_REBUILD_IN_PROGRESS"

	// Bulk errors (700-799)
	ErrCodeBulkPartial = "ERR_701_BULK_PARTIAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "301" from "ERR_301_BACKEND_TIMEOUT")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '3':
		return CategoryBackend
	case '4':
		return CategoryValidation
	case '6':
		return CategoryConflict
	case '7':
		return CategoryBulk
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeInternal:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode reports whether a caller may reasonably retry.
// This layer never retries on its own.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeBackendTimeout, ErrCodeBackendUnavailable:
		return true
	default:
		return false
	}
}

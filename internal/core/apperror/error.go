// Package apperror provides structured error handling for the inventory core.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes following domain-driven design
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"
	CodeTimeout  = "TIMEOUT_ERROR"

	// Validation errors (400)
	CodeValidation    = "VALIDATION_ERROR"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeMissingReason = "MISSING_REASON"
	CodeConversion    = "UNIT_CONVERSION_ERROR"

	// Business rule violations
	CodeBusinessRule        = "BUSINESS_RULE_VIOLATION"
	CodeCycleLocked         = "INVENTORY_CYCLE_LOCKED"
	CodeOrderNotCancellable = "ORDER_NOT_CANCELLABLE"
	CodeNothingToRecord     = "NOTHING_TO_RECORD"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict  = "CONFLICT"
	CodeDuplicate = "DUPLICATE_ENTRY"
)

// AppError is the standard error type for the platform.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field errors, quantities, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions for common errors ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewBusinessRule creates a business rule violation error (422)
func NewBusinessRule(code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewCycleLocked is returned for any mutation attempted on a finalized
// inventory cycle (409).
func NewCycleLocked(cycleID any) *AppError {
	return &AppError{
		Code:       CodeCycleLocked,
		Message:    "Inventory cycle is finalized and locked for counting",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"cycle_id": cycleID},
	}
}

// NewConversion is returned when converting between incompatible
// measurement dimensions (400).
func NewConversion(from, to string) *AppError {
	return &AppError{
		Code:       CodeConversion,
		Message:    "Cannot convert between measurement units of different dimensions",
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"from": from, "to": to},
	}
}

// NewOrderNotCancellable is returned when a ledger reversal is requested
// for an order that already entered preparation (409).
func NewOrderNotCancellable(status string) *AppError {
	return &AppError{
		Code:       CodeOrderNotCancellable,
		Message:    "Order can no longer be cancelled",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"status": status},
	}
}

// NewMissingReason is returned when a count re-edit arrives without the
// mandatory reason string (400).
func NewMissingReason() *AppError {
	return &AppError{
		Code:       CodeMissingReason,
		Message:    "A reason is required when re-editing a recorded count",
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNothingToRecord is the no-op guard error: the submitted count equals
// the current running count, so there is nothing to record (400).
func NewNothingToRecord(goodID any) *AppError {
	return &AppError{
		Code:       CodeNothingToRecord,
		Message:    "Submitted count equals the current running count",
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"supplier_good_id": goodID},
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewDuplicate creates a duplicate entry error (409)
func NewDuplicate(entity, field, value string) *AppError {
	return &AppError{
		Code:       CodeDuplicate,
		Message:    fmt.Sprintf("%s with this %s already exists", entity, field),
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"entity": entity, "field": field, "value": value},
	}
}

// --- Helper functions ---

// IsAppError checks if error is AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeNotFound
	}
	return false
}

// IsCycleLocked checks if error is CodeCycleLocked
func IsCycleLocked(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeCycleLocked
	}
	return false
}

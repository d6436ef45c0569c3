package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	// Enrollment and billing errors.
	ErrIneligibleEnrollment = New("INELIGIBLE_ENROLLMENT", http.StatusUnprocessableEntity, "enrollment is not eligible")
	ErrInvalidTransition    = New("INVALID_TRANSITION", http.StatusConflict, "status transition not allowed")
	ErrReceiptFinalized     = New("RECEIPT_FINALIZED", http.StatusConflict, "receipt already issued")
	ErrInvoiceEmpty         = New("INVOICE_EMPTY", http.StatusPreconditionFailed, "invoice has no line items")
)

// BulkErrorDetail describes a single failed item of a batch operation.
type BulkErrorDetail struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BulkError aggregates per-item failures of an all-or-nothing batch.
// When a BulkError is returned no item in the batch was mutated.
type BulkError struct {
	Base    *Error            `json:"error"`
	Details []BulkErrorDetail `json:"details"`
}

// NewBulkError builds a BulkError from per-item failures.
func NewBulkError(message string, details []BulkErrorDetail) *BulkError {
	return &BulkError{
		Base:    New("BULK_VALIDATION_ERROR", http.StatusUnprocessableEntity, message),
		Details: details,
	}
}

// Error implements the error interface.
func (e *BulkError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Base.Error()
}

// Unwrap exposes the underlying typed error so errors.As finds it.
func (e *BulkError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Base
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var be *BulkError
	if errors.As(err, &be) {
		return be.Base
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

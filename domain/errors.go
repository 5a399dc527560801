package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a semantic classification shared across transport layers.
type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalid      ErrorCode = "INVALID"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInternal     ErrorCode = "INTERNAL"
	ErrCodeWrite        ErrorCode = "WRITE_FAILED"
	ErrCodeSuggestion   ErrorCode = "SUGGESTION_FAILED"
)

// Error represents a domain-level error.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewError builds a domain error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WrapError wraps an existing error with a domain classification.
func WrapError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewWriteError reports a failed create, update or delete.
func NewWriteError(operation string, err error) *Error {
	return WrapError(ErrCodeWrite, operation+" task failed", err)
}

// NewSuggestionError reports a failed or empty call to the title suggestion flow.
func NewSuggestionError(err error) *Error {
	return WrapError(ErrCodeSuggestion, "title suggestion failed", err)
}

// Common domain errors.
var (
	ErrUserNotFound       = NewError(ErrCodeNotFound, "user not found")
	ErrTaskNotFound       = NewError(ErrCodeNotFound, "task not found")
	ErrSessionNotFound    = NewError(ErrCodeNotFound, "session not found")
	ErrUnauthorized       = NewError(ErrCodeUnauthorized, "unauthorized")
	ErrInvalidPayload     = NewError(ErrCodeInvalid, "invalid payload")
	ErrInvalidCredentials = NewError(ErrCodeUnauthorized, "invalid email or password")
	ErrEmailTaken         = NewError(ErrCodeConflict, "email already registered")
)

// IsDomainError helps checking error codes.
func IsDomainError(err error, code ErrorCode) bool {
	var dErr *Error
	if errors.As(err, &dErr) {
		return dErr.Code == code
	}
	return false
}

// Field names used in validation results.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldPriority    = "priority"
	FieldDueDate     = "due_date"
	FieldEmail       = "email"
	FieldPassword    = "password"
)

// FieldError is one failed rule on one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is a local, field-scoped rejection. It never reaches a repository.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func NewValidationError(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Message returns the first error recorded for field, or "".
func (e *ValidationError) Message(field string) string {
	if e == nil {
		return ""
	}
	for _, f := range e.Fields {
		if f.Field == field {
			return f.Message
		}
	}
	return ""
}

// IsValidationError reports whether err carries field errors.
func IsValidationError(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}

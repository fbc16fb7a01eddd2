// Package domain provides domain-specific error definitions and utilities.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Resolution error classes. Every typed error below unwraps to exactly one of these.
var (
	ErrInvalid          = errors.New("invalid request")
	ErrConflict         = errors.New("uniqueness conflict")
	ErrInvalidReference = errors.New("invalid reference")
	ErrInternal         = errors.New("internal error")
)

// Lookup errors.
var (
	ErrUnknownKind   = errors.New("unknown entity kind")
	ErrNotFound      = errors.New("record not found")
	ErrLeaseNotFound = errors.New("sync task not found")
)

// FieldError names one field that failed validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects local validation failures for one candidate.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Add appends a field failure.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field failed.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Field == "" {
			parts = append(parts, f.Message)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return "invalid: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// ReferenceError reports a foreign-key violation on a referencing column.
type ReferenceError struct {
	Field  string
	Value  string
	Table  string
	Detail string
}

func (e *ReferenceError) Error() string {
	switch {
	case e.Field != "" && e.Value != "":
		return fmt.Sprintf("foreign key %s is missing value %s", e.Field, e.Value)
	case e.Field != "":
		return fmt.Sprintf("foreign key %s references a missing row", e.Field)
	default:
		return "foreign key references a missing row"
	}
}

func (e *ReferenceError) Unwrap() error { return ErrInvalidReference }

// ConflictError is returned when an insert lost a uniqueness race and the
// winning row could not be read back. Callers retry.
type ConflictError struct {
	Kind string
	Key  map[string]any
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("unique constraint violation on %s %v: re-fetch of the existing row failed", e.Kind, e.Key)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// InternalError hides store or transport failures from clients. Detail keeps
// the driver text for diagnostics.
type InternalError struct {
	Operation string
	Cause     error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Operation, ErrInternal.Error())
}

// Detail returns the underlying cause text.
func (e *InternalError) Detail() string {
	if e.Cause == nil {
		return ""
	}
	return e.Cause.Error()
}

func (e *InternalError) Unwrap() []error { return []error{ErrInternal, e.Cause} }

// NewInternalError wraps cause as an internal failure of operation.
func NewInternalError(operation string, cause error) *InternalError {
	return &InternalError{Operation: operation, Cause: cause}
}

// Classify returns the error class sentinel err belongs to, defaulting to ErrInternal.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalid), errors.Is(err, ErrUnknownKind):
		return ErrInvalid
	case errors.Is(err, ErrInvalidReference):
		return ErrInvalidReference
	case errors.Is(err, ErrConflict):
		return ErrConflict
	default:
		return ErrInternal
	}
}

// IsClientError reports whether err is attributable to the request contents.
func IsClientError(err error) bool {
	class := Classify(err)
	return class == ErrInvalid || class == ErrInvalidReference
}

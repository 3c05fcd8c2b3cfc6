// Package apperror defines the error taxonomy shared by every module.
package apperror

import (
	"errors"
	"fmt"
	"strings"
)

// Error classes. Callers match them with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
	ErrStorage    = errors.New("storage failure")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field problem found in a request.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Add appends a field problem.
func (e *ValidationError) Add(field, format string, args ...interface{}) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// OrNil returns nil when no field problems were recorded.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Validation builds a ValidationError for a single field.
func Validation(field, format string, args ...interface{}) error {
	v := &ValidationError{Message: "invalid request"}
	v.Add(field, format, args...)
	return v
}

// NotFound reports a missing (or out-of-scope) resource.
func NotFound(resource string) error {
	return fmt.Errorf("%s %w", resource, ErrNotFound)
}

// Conflict reports an illegal state transition.
func Conflict(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
}

// Forbidden reports a caller lacking a required permission.
func Forbidden(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrForbidden)
}

// Storage wraps an infrastructure failure. Already classified errors pass through.
func Storage(err error) error {
	if err == nil || IsClassified(err) {
		return err
	}
	return &storageError{cause: err}
}

type storageError struct {
	cause error
}

func (e *storageError) Error() string { return "storage failure: " + e.cause.Error() }

func (e *storageError) Is(target error) bool { return target == ErrStorage }

func (e *storageError) Unwrap() error { return e.cause }

// IsClassified reports whether err already belongs to one of the error classes.
func IsClassified(err error) bool {
	for _, class := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrForbidden, ErrStorage} {
		if errors.Is(err, class) {
			return true
		}
	}
	return false
}

// Wrap adds context to an error while preserving the original error.
func Wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

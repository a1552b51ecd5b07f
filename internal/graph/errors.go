package graph

import (
	"errors"
	"fmt"
)

// ValidationError reports bad caller input. It is always returned before
// any write, so no partial state exists when a caller sees one.
type ValidationError struct {
	// Field names the offending input field, when there is one.
	Field string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
	}
	return "validation: " + e.Message
}

// NotFoundError reports an operation on something that does not exist,
// such as an unknown saved snapshot name.
type NotFoundError struct {
	// Kind is the kind of thing looked up ("saved graph", "node", ...).
	Kind string

	// Name is the identifier that failed to resolve.
	Name string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
	}
	return e.Kind + " not found"
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(kind, name string) *NotFoundError {
	return &NotFoundError{Kind: kind, Name: name}
}

// IsValidationError returns true if err is or wraps a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFoundError returns true if err is or wraps a NotFoundError.
func IsNotFoundError(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

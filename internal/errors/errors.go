// Package errors provides categorized errors for the trust engine.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryProvider represents data vendor errors
	CategoryProvider ErrorCategory = "provider"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
	// CategoryCache represents cache errors
	CategoryCache ErrorCategory = "cache"
	// CategoryQueue represents message queue errors
	CategoryQueue ErrorCategory = "queue"
	// CategoryBackend represents backend synchronization errors
	CategoryBackend ErrorCategory = "backend"
	// CategoryValidation represents validation errors
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
)

// CategorizedError represents an error with a category and a stable code
type CategorizedError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Cause    error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// New creates a categorized error
func New(category ErrorCategory, code, message string) *CategorizedError {
	return &CategorizedError{Category: category, Code: code, Message: message}
}

// Wrap creates a categorized error around a cause
func Wrap(category ErrorCategory, code, message string, cause error) *CategorizedError {
	return &CategorizedError{Category: category, Code: code, Message: message, Cause: cause}
}

// CategoryOf returns the category of a categorized error, or an empty
// category for plain errors.
func CategoryOf(err error) ErrorCategory {
	var ce *CategorizedError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ""
}

// IsNotFound reports whether the error is a not-found error.
func IsNotFound(err error) bool {
	return CategoryOf(err) == CategoryNotFound
}

// Common constructors used across the engine.

// ProviderError wraps a data vendor failure
func ProviderError(code, message string, cause error) *CategorizedError {
	return Wrap(CategoryProvider, code, message, cause)
}

// DatabaseError wraps a database failure
func DatabaseError(code, message string, cause error) *CategorizedError {
	return Wrap(CategoryDatabase, code, message, cause)
}

// ValidationError creates a validation failure
func ValidationError(code, message string) *CategorizedError {
	return New(CategoryValidation, code, message)
}

// NotFoundError creates a not-found failure
func NotFoundError(code, message string) *CategorizedError {
	return New(CategoryNotFound, code, message)
}

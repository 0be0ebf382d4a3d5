package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation and capability failures.
var (
	ErrEmptyQuery       = errors.New("empty query")
	ErrQueryTooShort    = errors.New("query too short")
	ErrEmptyChunk       = errors.New("chunk content is empty")
	ErrMissingSource    = errors.New("chunk metadata missing source")
	ErrModelUnavailable = errors.New("model unavailable")
)

// ConfigError marks a broken deployment: malformed category tables, missing
// weights, and similar. It is fatal at startup, never silently defaulted.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// NewConfigError creates a ConfigError.
func NewConfigError(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

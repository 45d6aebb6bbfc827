package config

import (
	"errors"
	"fmt"
)

// Error code constants.
const (
	ErrCodeSyntax     = "C001" // YAML could not be parsed
	ErrCodeSchema     = "C002" // CUE schema validation failed
	ErrCodeDuplicate  = "C003" // Identifier declared twice
	ErrCodeUnknownRef = "C004" // Reference to an undeclared identifier
	ErrCodeBounds     = "C005" // Value outside its permitted range
)

// ValidationError describes why a configuration was rejected.
type ValidationError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`

	// Line is the 1-based line in the document, or 0 if unknown.
	Line int `json:"line,omitempty"`
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrorCode returns the code of a *ValidationError, or "".
func ErrorCode(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

func newDuplicateError(section, id string) *ValidationError {
	return &ValidationError{
		Code:    ErrCodeDuplicate,
		Field:   section,
		Message: fmt.Sprintf("duplicate id %q", id),
	}
}

func newUnknownRefError(field, id string) *ValidationError {
	return &ValidationError{
		Code:    ErrCodeUnknownRef,
		Field:   field,
		Message: fmt.Sprintf("unknown reference %q", id),
	}
}

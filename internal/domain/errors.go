package domain

import (
	"errors"
	"fmt"
)

// Error codes for configuration failures. All of them abort a run.
const (
	ErrMalformedTable   = "MALFORMED_TABLE"
	ErrDependencyCycle  = "DEPENDENCY_CYCLE"
	ErrUnknownGroup     = "UNKNOWN_GROUP"
	ErrDuplicateGroup   = "DUPLICATE_GROUP"
	ErrMissingAttribute = "MISSING_ATTRIBUTE"
	ErrInvalidConfig    = "INVALID_CONFIG"
)

// ErrConfiguration matches every *ConfigurationError via errors.Is.
var ErrConfiguration = errors.New("configuration error")

// ConfigurationError is a fatal problem with the rules or with the shape of
// the input population.
type ConfigurationError struct {
	Code    string `json:"code"`
	Group   string `json:"group,omitempty"`
	Row     int    `json:"row,omitempty"` // 1-based, 0 when not row specific
	Message string `json:"message"`
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	switch {
	case e.Group != "" && e.Row > 0:
		return fmt.Sprintf("%s: group %s row %d: %s", e.Code, e.Group, e.Row, e.Message)
	case e.Group != "":
		return fmt.Sprintf("%s: group %s: %s", e.Code, e.Group, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Is lets errors.Is(err, ErrConfiguration) match any configuration error.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// NewConfigurationError creates a ConfigurationError for a group (may be empty).
func NewConfigurationError(code, group, message string) *ConfigurationError {
	return &ConfigurationError{
		Code:    code,
		Group:   group,
		Message: message,
	}
}

// NewRowError creates a ConfigurationError pointing at one decision table row.
func NewRowError(group string, row int, message string) *ConfigurationError {
	return &ConfigurationError{
		Code:    ErrMalformedTable,
		Group:   group,
		Row:     row,
		Message: message,
	}
}

// ValidationError represents an input value that could not be read at all
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestConfigurationError(t *testing.T) {
	tests := []struct {
		name     string
		err      *ConfigurationError
		expected string
	}{
		{
			name:     "Row error",
			err:      NewRowError("ckd_group", 2, "non-final row must have exactly one Next"),
			expected: "MALFORMED_TABLE: group ckd_group row 2: non-final row must have exactly one Next",
		},
		{
			name:     "Group error",
			err:      NewConfigurationError(ErrUnknownGroup, "atrisk_group", "references undefined group foo_group"),
			expected: "UNKNOWN_GROUP: group atrisk_group: references undefined group foo_group",
		},
		{
			name:     "Run error",
			err:      NewConfigurationError(ErrMissingAttribute, "", "input has no column immrx_dat"),
			expected: "MISSING_ATTRIBUTE: input has no column immrx_dat",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.expected {
				t.Errorf("Expected error string %s, got %s", tt.expected, tt.err.Error())
			}

			wrapped := fmt.Errorf("building rule set: %w", tt.err)
			if !errors.Is(wrapped, ErrConfiguration) {
				t.Errorf("Expected wrapped error to match ErrConfiguration")
			}

			var cfgErr *ConfigurationError
			if !errors.As(wrapped, &cfgErr) || cfgErr.Code != tt.err.Code {
				t.Errorf("Expected errors.As to recover code %s", tt.err.Code)
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		message string
		value   interface{}
	}{
		{
			name:    "Date validation error",
			field:   "shield_dat",
			message: "invalid date",
			value:   "10/01/2021",
		},
		{
			name:    "Integer validation error",
			field:   "age",
			message: "not an integer",
			value:   "eighty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidationError(tt.field, tt.message, tt.value)

			if err.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, err.Field)
			}

			if err.Value != tt.value {
				t.Errorf("Expected value %v, got %v", tt.value, err.Value)
			}

			expectedError := "validation error for field '" + tt.field + "': " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}

			if errors.Is(err, ErrConfiguration) {
				t.Errorf("ValidationError must not be a configuration error")
			}
		})
	}
}

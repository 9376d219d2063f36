package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		message   string
		details   string
		requestID string
	}{
		{
			name:      "Invalid input",
			code:      ErrInvalidInput,
			message:   "medication is required",
			details:   "supply medication_name or rxnorm",
			requestID: "req-123",
		},
		{
			name:      "Unknown medication",
			code:      ErrUnknownMedication,
			message:   "unknown medication",
			details:   "name \"aspirinx\"",
			requestID: "req-456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAPIError(tt.code, tt.message, tt.details, tt.requestID)

			if err.Code != tt.code {
				t.Errorf("Expected code %s, got %s", tt.code, err.Code)
			}
			if err.Details != tt.details {
				t.Errorf("Expected details %s, got %s", tt.details, err.Details)
			}
			if err.RequestID != tt.requestID {
				t.Errorf("Expected requestID %s, got %s", tt.requestID, err.RequestID)
			}
			if time.Since(err.Timestamp) > time.Minute {
				t.Errorf("Timestamp should be recent, got %v", err.Timestamp)
			}

			expectedError := tt.code + ": " + tt.message
			if err.Error() != expectedError {
				t.Errorf("Expected error string %s, got %s", expectedError, err.Error())
			}
		})
	}
}

func TestUnknownMedicationError(t *testing.T) {
	tests := []struct {
		name       string
		err        *UnknownMedicationError
		identifier string
		contains   []string
	}{
		{
			name:       "Name only",
			err:        &UnknownMedicationError{Name: "aspirinx"},
			identifier: "aspirinx",
			contains:   []string{`name "aspirinx"`},
		},
		{
			name:       "Code only",
			err:        &UnknownMedicationError{Code: "999999"},
			identifier: "999999",
			contains:   []string{`drug code "999999"`},
		},
		{
			name:       "Both",
			err:        &UnknownMedicationError{Name: "codeine", Code: "999999"},
			identifier: "999999",
			contains:   []string{`drug code "999999"`, `name "codeine"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("resolving medication: %w", tt.err)

			if !errors.Is(wrapped, ErrMedicationNotFound) {
				t.Errorf("Expected errors.Is to match ErrMedicationNotFound")
			}
			var target *UnknownMedicationError
			if !errors.As(wrapped, &target) {
				t.Fatalf("Expected errors.As to find UnknownMedicationError")
			}
			if target.Identifier() != tt.identifier {
				t.Errorf("Expected identifier %s, got %s", tt.identifier, target.Identifier())
			}
			for _, s := range tt.contains {
				if !strings.Contains(tt.err.Error(), s) {
					t.Errorf("Expected %q in %q", s, tt.err.Error())
				}
			}
		})
	}

	if errors.Is(ErrMissingMedication, ErrMedicationNotFound) {
		t.Errorf("Missing medication must not be reported as unknown")
	}
}

func TestKnowledgeBaseError(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := &KnowledgeBaseError{Table: "guidelines", File: "guidelines.json", Err: cause}

	if !errors.Is(err, cause) {
		t.Errorf("Expected KnowledgeBaseError to unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "guidelines.json") {
		t.Errorf("Expected file name in %q", err.Error())
	}

	noFile := &KnowledgeBaseError{Table: "alternatives", Err: cause}
	if strings.Contains(noFile.Error(), "()") {
		t.Errorf("Unexpected empty file marker in %q", noFile.Error())
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("variants", "must be a list", 42)

	if err.Field != "variants" {
		t.Errorf("Expected field variants, got %s", err.Field)
	}
	expected := "validation error for field 'variants': must be a list"
	if err.Error() != expected {
		t.Errorf("Expected error string %s, got %s", expected, err.Error())
	}
}

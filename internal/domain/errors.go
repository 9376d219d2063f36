package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrInvalidInput      = "INVALID_INPUT"
	ErrUnknownMedication = "UNKNOWN_MEDICATION"
	ErrKnowledgeBase     = "KNOWLEDGE_BASE_ERROR"
	ErrStorage           = "STORAGE_ERROR"
	ErrRateLimit         = "RATE_LIMIT_EXCEEDED"
	ErrUnavailable       = "SERVICE_UNAVAILABLE"
	ErrInternalServer    = "INTERNAL_SERVER_ERROR"
)

var (
	// ErrMedicationNotFound matches every UnknownMedicationError via errors.Is.
	ErrMedicationNotFound = errors.New("unknown medication")

	// ErrMissingMedication is returned when neither a name nor a drug code is supplied.
	ErrMissingMedication = errors.New("a medication name or drug code is required")
)

// UnknownMedicationError names the identifier that failed to resolve.
type UnknownMedicationError struct {
	Name string
	Code string
}

// Error implements the error interface
func (e *UnknownMedicationError) Error() string {
	var parts []string
	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("drug code %q", e.Code))
	}
	if e.Name != "" {
		parts = append(parts, fmt.Sprintf("name %q", e.Name))
	}
	return fmt.Sprintf("unknown medication: %s", strings.Join(parts, ", "))
}

// Is lets errors.Is(err, ErrMedicationNotFound) match.
func (e *UnknownMedicationError) Is(target error) bool {
	return target == ErrMedicationNotFound
}

// Identifier returns the selector that could not be resolved.
func (e *UnknownMedicationError) Identifier() string {
	if e.Code != "" {
		return e.Code
	}
	return e.Name
}

// KnowledgeBaseError reports a knowledge table that could not be loaded.
type KnowledgeBaseError struct {
	Table string
	File  string
	Err   error
}

// Error implements the error interface
func (e *KnowledgeBaseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("knowledge base table %s (%s): %v", e.Table, e.File, e.Err)
	}
	return fmt.Sprintf("knowledge base table %s: %v", e.Table, e.Err)
}

// Unwrap exposes the underlying cause
func (e *KnowledgeBaseError) Unwrap() error {
	return e.Err
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

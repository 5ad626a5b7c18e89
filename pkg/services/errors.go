// Package services provides the workflow definition lifecycle and the
// standardized error types of the service layer.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/rentflow/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInvalidState       = errors.New("invalid lifecycle state")
	ErrInvalidTriggerKind = errors.New("invalid trigger kind")
	ErrWorkflowNil        = errors.New("workflow cannot be nil")

	// Activation Validation Errors (400 Bad Request).
	ErrInvalidDefinition = errors.New("workflow definition cannot be activated")
	ErrActionsRequired   = errors.New("workflow must have at least one action step")
	ErrDuplicateOrder    = errors.New("action steps must have unique orders")

	// Business Logic Conflicts (409 Conflict).
	ErrInvalidTransition  = errors.New("invalid lifecycle transition")
	ErrCannotModifyActive = errors.New("cannot modify active workflow")

	// ErrWorkflowNotFound is returned when a workflow is not found.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInvalidTriggerKind) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrInvalidDefinition)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrCannotModifyActive)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

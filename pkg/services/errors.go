// Package services provides the control-plane operations over workflows and
// executions, plus standardized error types for the API layer.
package services

import (
	"errors"
	"fmt"

	"github.com/coachflow/coachflow/pkg/engine"
	"github.com/coachflow/coachflow/pkg/models"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidStatus     = errors.New("invalid execution status")
	ErrEmptyCoachID      = errors.New("coach ID cannot be empty")
	ErrInvalidStepConfig = errors.New("invalid step configuration")

	// Business Logic Conflicts (409 Conflict).
	ErrWorkflowNotLaunchable = errors.New("workflow cannot be launched")
	ErrClientAlreadyEnrolled = errors.New("client already has an active execution for this workflow")
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
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrEmptyCoachID) ||
		errors.Is(err, ErrInvalidStepConfig) ||
		errors.Is(err, models.ErrNoSteps) ||
		errors.Is(err, models.ErrNoAudienceStep)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrWorkflowNotLaunchable) ||
		errors.Is(err, ErrClientAlreadyEnrolled) ||
		errors.Is(err, models.ErrWorkflowInactive) ||
		errors.Is(err, engine.ErrExecutionTerminal) ||
		errors.Is(err, engine.ErrInvalidTransition)
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
